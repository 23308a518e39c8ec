package storage

import (
	"context"
	"errors"
	"time"

	"github.com/novastack/service_layer/internal/app/domain/investment"
	"github.com/novastack/service_layer/internal/app/domain/startup"
	"github.com/novastack/service_layer/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("record conflicts with an existing record")
)

// UserFilter narrows ListUsers. Empty fields match everything.
type UserFilter struct {
	Skill    string
	Interest string
	Limit    int
}

// UserStore persists member profiles.
type UserStore interface {
	CreateUser(ctx context.Context, p user.Profile) (user.Profile, error)
	UpdateUser(ctx context.Context, p user.Profile) (user.Profile, error)
	GetUser(ctx context.Context, id string) (user.Profile, error)
	GetUserByUsername(ctx context.Context, username string) (user.Profile, error)
	// ListUsers orders by reputation descending, then newest first.
	ListUsers(ctx context.Context, filter UserFilter) ([]user.Profile, error)
	TouchUser(ctx context.Context, id string, at time.Time) error
}

// StartupSort selects the ordering of ListStartups.
type StartupSort int

const (
	// SortFeatured puts featured listings first, then newest.
	SortFeatured StartupSort = iota
	// SortTrending orders by views, then likes.
	SortTrending
)

// StartupFilter narrows ListStartups. Nil/empty fields match everything.
type StartupFilter struct {
	PublicActiveOnly bool
	Industry         string
	Stage            startup.Stage
	Featured         *bool
	Tags             []string
	Sort             StartupSort
	Limit            int
}

// Counter names an integer counter column on a startup.
type Counter string

const (
	CounterViews Counter = "view_count"
	CounterLikes Counter = "like_count"
)

// StartupStore persists startup listings.
type StartupStore interface {
	CreateStartup(ctx context.Context, s startup.Startup) (startup.Startup, error)
	UpdateStartup(ctx context.Context, s startup.Startup) (startup.Startup, error)
	GetStartup(ctx context.Context, id string) (startup.Startup, error)
	ListStartups(ctx context.Context, filter StartupFilter) ([]startup.Startup, error)
	// ListStartupsForUser returns listings where userID is founder, co-founder
	// or team member, newest first.
	ListStartupsForUser(ctx context.Context, userID string) ([]startup.Startup, error)
	IncrementStartupCounter(ctx context.Context, id string, counter Counter) (startup.Startup, error)
	// AddStartupInvestor appends inv and raises current funding by its amount.
	AddStartupInvestor(ctx context.Context, id string, inv startup.Investor) (startup.Startup, error)
}

// InvestmentStore persists wallet investment records.
type InvestmentStore interface {
	CreateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error)
	UpdateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error)
	GetInvestment(ctx context.Context, id string) (investment.Investment, error)
	ListInvestmentsByInvestor(ctx context.Context, investorID string) ([]investment.Investment, error)
	ListInvestmentsByStartup(ctx context.Context, startupID string) ([]investment.Investment, error)
	ListPendingInvestments(ctx context.Context) ([]investment.Investment, error)
}
