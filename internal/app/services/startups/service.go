// Package startups manages startup listings and their team, funding and
// wallet state.
package startups

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/novastack/service_layer/internal/app/domain/startup"
	"github.com/novastack/service_layer/internal/app/domain/user"
	"github.com/novastack/service_layer/internal/app/storage"
	"github.com/novastack/service_layer/internal/errors"
	"github.com/novastack/service_layer/internal/monero"
	"github.com/novastack/service_layer/pkg/logger"
)

// TrendingLimit caps the trending listing.
const TrendingLimit = 10

// Wallet provisions per-startup receiving subaddresses.
type Wallet interface {
	CreateStartupWallet(ctx context.Context, startupID string) (*monero.Address, error)
}

// Members checks that a user exists before they join a team.
type Members interface {
	GetUser(ctx context.Context, id string) (user.Profile, error)
}

// Service manages startup listings.
type Service struct {
	store   storage.StartupStore
	wallet  Wallet
	members Members
	log     *logger.Logger
	now     func() time.Time
}

// New constructs a startup service. wallet may be nil.
func New(store storage.StartupStore, wallet Wallet, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("startups")
	}
	return &Service{
		store:  store,
		wallet: wallet,
		log:    log,
		now:    time.Now,
	}
}

// AttachMembers enables the existence check on new team members.
func (s *Service) AttachMembers(m Members) {
	s.members = m
}

// CreateInput is the payload accepted when founding a startup.
type CreateInput struct {
	Name                 string        `json:"name"`
	Tagline              string        `json:"tagline"`
	Description          string        `json:"description"`
	Industry             string        `json:"industry"`
	Stage                startup.Stage `json:"stage"`
	BusinessModel        string        `json:"businessModel"`
	TargetMarket         string        `json:"targetMarket"`
	CompetitiveAdvantage string        `json:"competitiveAdvantage"`
	RevenueModel         string        `json:"revenueModel"`
	FundingGoal          *float64      `json:"fundingGoal"`
	Tags                 []string      `json:"tags"`
}

// Patch lists the fields founders may change. Nil fields are left untouched.
type Patch struct {
	Name                 *string        `json:"name"`
	Tagline              *string        `json:"tagline"`
	Description          *string        `json:"description"`
	Logo                 *string        `json:"logo"`
	Website              *string        `json:"website"`
	Industry             *string        `json:"industry"`
	Stage                *startup.Stage `json:"stage"`
	BusinessModel        *string        `json:"businessModel"`
	TargetMarket         *string        `json:"targetMarket"`
	CompetitiveAdvantage *string        `json:"competitiveAdvantage"`
	RevenueModel         *string        `json:"revenueModel"`
	FundingGoal          *float64       `json:"fundingGoal"`
	Tags                 *[]string      `json:"tags"`
	IsPublic             *bool          `json:"isPublic"`
}

// TeamMemberInput adds a member to a startup's team.
type TeamMemberInput struct {
	UserID string   `json:"userId"`
	Role   string   `json:"role"`
	Equity *float64 `json:"equity"`
}

// Create founds a new public, active startup owned by founderID.
func (s *Service) Create(ctx context.Context, founderID string, in CreateInput) (startup.Startup, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Tagline) == "" ||
		strings.TrimSpace(in.Description) == "" || strings.TrimSpace(in.Industry) == "" || in.Stage == "" {
		return startup.Startup{}, errors.BadRequest("Required fields: name, tagline, description, industry, stage")
	}

	st := startup.Startup{
		Name:                 in.Name,
		Tagline:              in.Tagline,
		Description:          strings.TrimSpace(in.Description),
		Industry:             strings.TrimSpace(in.Industry),
		Stage:                in.Stage,
		BusinessModel:        strings.TrimSpace(in.BusinessModel),
		TargetMarket:         strings.TrimSpace(in.TargetMarket),
		CompetitiveAdvantage: strings.TrimSpace(in.CompetitiveAdvantage),
		RevenueModel:         strings.TrimSpace(in.RevenueModel),
		FundingGoal:          in.FundingGoal,
		Tags:                 in.Tags,
		FounderID:            founderID,
		IsPublic:             true,
	}
	st.Normalize()
	if err := st.Validate(); err != nil {
		return startup.Startup{}, errors.Validation(err.Error())
	}

	created, err := s.store.CreateStartup(ctx, st)
	if err != nil {
		return startup.Startup{}, storeError(err)
	}
	s.log.WithContext(ctx).
		WithField("startup_id", created.ID).
		WithField("founder_id", founderID).
		Info("startup created")
	return created, nil
}

// Get returns the startup if viewerID may see it and counts the view.
// Anonymous viewers pass an empty ID.
func (s *Service) Get(ctx context.Context, id, viewerID string) (startup.Startup, error) {
	st, err := s.store.GetStartup(ctx, id)
	if err != nil {
		return startup.Startup{}, storeError(err)
	}
	if !st.CanView(viewerID) {
		return startup.Startup{}, errors.Forbidden("Access denied")
	}
	viewed, err := s.store.IncrementStartupCounter(ctx, id, storage.CounterViews)
	if err != nil {
		return startup.Startup{}, storeError(err)
	}
	return viewed, nil
}

// Update applies patch when editorID is a founder or co-founder.
func (s *Service) Update(ctx context.Context, id, editorID string, patch Patch) (startup.Startup, error) {
	st, err := s.store.GetStartup(ctx, id)
	if err != nil {
		return startup.Startup{}, storeError(err)
	}
	if !st.CanEdit(editorID) {
		return startup.Startup{}, errors.Forbidden("Access denied. Only founders and co-founders can update startup")
	}

	setString(&st.Name, patch.Name)
	setString(&st.Tagline, patch.Tagline)
	setString(&st.Description, patch.Description)
	setString(&st.Logo, patch.Logo)
	setString(&st.Website, patch.Website)
	setString(&st.Industry, patch.Industry)
	setString(&st.BusinessModel, patch.BusinessModel)
	setString(&st.TargetMarket, patch.TargetMarket)
	setString(&st.CompetitiveAdvantage, patch.CompetitiveAdvantage)
	setString(&st.RevenueModel, patch.RevenueModel)
	if patch.Stage != nil {
		st.Stage = *patch.Stage
	}
	if patch.FundingGoal != nil {
		goal := *patch.FundingGoal
		st.FundingGoal = &goal
	}
	if patch.Tags != nil {
		st.Tags = *patch.Tags
	}
	if patch.IsPublic != nil {
		st.IsPublic = *patch.IsPublic
	}
	st.Normalize()
	if err := st.Validate(); err != nil {
		return startup.Startup{}, errors.Validation(err.Error())
	}

	updated, err := s.store.UpdateStartup(ctx, st)
	if err != nil {
		return startup.Startup{}, storeError(err)
	}
	s.log.WithContext(ctx).
		WithField("startup_id", id).
		WithField("editor_id", editorID).
		Info("startup updated")
	return updated, nil
}

// AddTeamMember appends a member when editorID is a founder or co-founder.
func (s *Service) AddTeamMember(ctx context.Context, id, editorID string, in TeamMemberInput) (startup.Startup, error) {
	st, err := s.store.GetStartup(ctx, id)
	if err != nil {
		return startup.Startup{}, storeError(err)
	}
	if !st.CanEdit(editorID) {
		return startup.Startup{}, errors.Forbidden("Access denied")
	}
	in.UserID = strings.TrimSpace(in.UserID)
	for _, m := range st.TeamMembers {
		if m.UserID == in.UserID {
			return startup.Startup{}, errors.BadRequest("User is already a team member")
		}
	}
	if s.members != nil {
		if _, err := s.members.GetUser(ctx, in.UserID); err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return startup.Startup{}, errors.NotFound("User not found")
			}
			return startup.Startup{}, err
		}
	}

	st.TeamMembers = append(st.TeamMembers, startup.TeamMember{
		UserID:   in.UserID,
		Role:     strings.TrimSpace(in.Role),
		Equity:   in.Equity,
		JoinedAt: s.now().UTC(),
	})
	if err := st.Validate(); err != nil {
		return startup.Startup{}, errors.Validation(err.Error())
	}

	updated, err := s.store.UpdateStartup(ctx, st)
	if err != nil {
		return startup.Startup{}, storeError(err)
	}
	s.log.WithContext(ctx).
		WithField("startup_id", id).
		WithField("member_id", in.UserID).
		Info("team member added")
	return updated, nil
}

// Like increments the like counter. Likes are not tracked per member.
func (s *Service) Like(ctx context.Context, id string) (startup.Startup, error) {
	st, err := s.store.IncrementStartupCounter(ctx, id, storage.CounterLikes)
	if err != nil {
		return startup.Startup{}, storeError(err)
	}
	return st, nil
}

// List returns public, active startups with featured listings first.
func (s *Service) List(ctx context.Context, filter storage.StartupFilter) ([]startup.Startup, error) {
	filter.PublicActiveOnly = true
	filter.Sort = storage.SortFeatured
	return s.store.ListStartups(ctx, filter)
}

// Trending returns the most viewed public, active startups.
func (s *Service) Trending(ctx context.Context) ([]startup.Startup, error) {
	return s.store.ListStartups(ctx, storage.StartupFilter{
		PublicActiveOnly: true,
		Sort:             storage.SortTrending,
		Limit:            TrendingLimit,
	})
}

// ListForUser returns every startup userID belongs to. Private listings are
// included only when viewerID is also a member.
func (s *Service) ListForUser(ctx context.Context, userID, viewerID string) ([]startup.Startup, error) {
	all, err := s.store.ListStartupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	visible := make([]startup.Startup, 0, len(all))
	for _, st := range all {
		if st.CanView(viewerID) {
			visible = append(visible, st)
		}
	}
	return visible, nil
}

// AttachWallet gives the startup a receiving subaddress. Only founders and
// co-founders may request it; an existing address is kept.
func (s *Service) AttachWallet(ctx context.Context, id, editorID string) (startup.Startup, error) {
	st, err := s.store.GetStartup(ctx, id)
	if err != nil {
		return startup.Startup{}, storeError(err)
	}
	if !st.CanEdit(editorID) {
		return startup.Startup{}, errors.Forbidden("Access denied")
	}
	if st.MoneroAddress != "" {
		return st, nil
	}
	if s.wallet == nil {
		return startup.Startup{}, errors.Unavailable("Wallet service is not configured")
	}

	addr, err := s.wallet.CreateStartupWallet(ctx, id)
	if err != nil {
		return startup.Startup{}, errors.Upstream("Failed to create wallet", err)
	}
	st.MoneroAddress = addr.Address
	updated, err := s.store.UpdateStartup(ctx, st)
	if err != nil {
		return startup.Startup{}, storeError(err)
	}
	s.log.WithContext(ctx).
		WithField("startup_id", id).
		WithField("address_index", addr.AddressIndex).
		Info("startup wallet created")
	return updated, nil
}

// RecordInvestor appends a settled investment and raises current funding.
func (s *Service) RecordInvestor(ctx context.Context, id, investorID string, amount float64, terms string) (startup.Startup, error) {
	if amount < 0 {
		return startup.Startup{}, errors.Validation("investment amount must be non-negative")
	}
	st, err := s.store.AddStartupInvestor(ctx, id, startup.Investor{
		UserID:     investorID,
		Amount:     amount,
		InvestedAt: s.now().UTC(),
		Terms:      terms,
	})
	if err != nil {
		return startup.Startup{}, storeError(err)
	}
	s.log.WithContext(ctx).
		WithField("startup_id", id).
		WithField("investor_id", investorID).
		WithField("amount", amount).
		Info("startup investor recorded")
	return st, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func storeError(err error) error {
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.Wrap(err, errors.CodeNotFound, http.StatusNotFound, "Startup not found")
	case stderrors.Is(err, storage.ErrConflict):
		return errors.Wrap(err, errors.CodeConflict, http.StatusConflict, "Startup already exists")
	}
	return err
}
