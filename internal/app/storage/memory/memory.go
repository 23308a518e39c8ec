package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/novastack/service_layer/internal/app/domain/investment"
	"github.com/novastack/service_layer/internal/app/domain/startup"
	"github.com/novastack/service_layer/internal/app/domain/user"
	"github.com/novastack/service_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	users       map[string]user.Profile
	startups    map[string]startup.Startup
	investments map[string]investment.Investment
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.StartupStore = (*Store)(nil)
var _ storage.InvestmentStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:      1,
		users:       make(map[string]user.Profile),
		startups:    make(map[string]startup.Startup),
		investments: make(map[string]investment.Investment),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, p user.Profile) (user.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.users[p.ID]; exists {
		return user.Profile{}, fmt.Errorf("user %s: %w", p.ID, storage.ErrConflict)
	}
	if err := s.checkUserUniqueLocked(p); err != nil {
		return user.Profile{}, err
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.LastActive.IsZero() {
		p.LastActive = now
	}

	s.users[p.ID] = cloneProfile(p)
	return cloneProfile(p), nil
}

func (s *Store) UpdateUser(_ context.Context, p user.Profile) (user.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[p.ID]
	if !ok {
		return user.Profile{}, fmt.Errorf("user %s: %w", p.ID, storage.ErrNotFound)
	}
	if err := s.checkUserUniqueLocked(p); err != nil {
		return user.Profile{}, err
	}

	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.users[p.ID] = cloneProfile(p)
	return cloneProfile(p), nil
}

func (s *Store) checkUserUniqueLocked(p user.Profile) error {
	for id, existing := range s.users {
		if id == p.ID {
			continue
		}
		if existing.Email == p.Email {
			return fmt.Errorf("email %s: %w", p.Email, storage.ErrConflict)
		}
		if existing.Username == p.Username {
			return fmt.Errorf("username %s: %w", p.Username, storage.ErrConflict)
		}
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.users[id]
	if !ok {
		return user.Profile{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return cloneProfile(p), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.users {
		if p.Username == username {
			return cloneProfile(p), nil
		}
	}
	return user.Profile{}, fmt.Errorf("user %s: %w", username, storage.ErrNotFound)
}

func (s *Store) ListUsers(_ context.Context, filter storage.UserFilter) ([]user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.Profile, 0, len(s.users))
	for _, p := range s.users {
		if filter.Skill != "" && !p.HasSkill(filter.Skill) {
			continue
		}
		if filter.Interest != "" && !p.HasInterest(filter.Interest) {
			continue
		}
		result = append(result, cloneProfile(p))
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].ReputationScore != result[j].ReputationScore {
			return result[i].ReputationScore > result[j].ReputationScore
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return limit(result, filter.Limit), nil
}

func (s *Store) TouchUser(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	p.LastActive = at.UTC()
	s.users[id] = p
	return nil
}

// StartupStore implementation -------------------------------------------------

func (s *Store) CreateStartup(_ context.Context, st startup.Startup) (startup.Startup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.ID == "" {
		st.ID = s.nextIDLocked()
	} else if _, exists := s.startups[st.ID]; exists {
		return startup.Startup{}, fmt.Errorf("startup %s: %w", st.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	if st.Metrics.LastUpdated.IsZero() {
		st.Metrics.LastUpdated = now
	}

	s.startups[st.ID] = cloneStartup(st)
	return cloneStartup(st), nil
}

func (s *Store) UpdateStartup(_ context.Context, st startup.Startup) (startup.Startup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.startups[st.ID]
	if !ok {
		return startup.Startup{}, fmt.Errorf("startup %s: %w", st.ID, storage.ErrNotFound)
	}

	// Funding and counters belong to AddStartupInvestor and
	// IncrementStartupCounter.
	st.CreatedAt = original.CreatedAt
	st.CurrentFunding = original.CurrentFunding
	st.Investors = original.Investors
	st.ViewCount = original.ViewCount
	st.LikeCount = original.LikeCount
	st.CommentCount = original.CommentCount
	st.UpdatedAt = time.Now().UTC()
	s.startups[st.ID] = cloneStartup(st)
	return cloneStartup(st), nil
}

func (s *Store) GetStartup(_ context.Context, id string) (startup.Startup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.startups[id]
	if !ok {
		return startup.Startup{}, fmt.Errorf("startup %s: %w", id, storage.ErrNotFound)
	}
	return cloneStartup(st), nil
}

func (s *Store) ListStartups(_ context.Context, filter storage.StartupFilter) ([]startup.Startup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]startup.Startup, 0, len(s.startups))
	for _, st := range s.startups {
		if !matchesStartup(st, filter) {
			continue
		}
		result = append(result, cloneStartup(st))
	}

	switch filter.Sort {
	case storage.SortTrending:
		sort.SliceStable(result, func(i, j int) bool {
			if result[i].ViewCount != result[j].ViewCount {
				return result[i].ViewCount > result[j].ViewCount
			}
			return result[i].LikeCount > result[j].LikeCount
		})
	default:
		sort.SliceStable(result, func(i, j int) bool {
			if result[i].IsFeatured != result[j].IsFeatured {
				return result[i].IsFeatured
			}
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
	}
	return limit(result, filter.Limit), nil
}

func matchesStartup(st startup.Startup, filter storage.StartupFilter) bool {
	if filter.PublicActiveOnly && (!st.IsPublic || st.Status != startup.StatusActive) {
		return false
	}
	if filter.Industry != "" && st.Industry != filter.Industry {
		return false
	}
	if filter.Stage != "" && st.Stage != filter.Stage {
		return false
	}
	if filter.Featured != nil && st.IsFeatured != *filter.Featured {
		return false
	}
	for _, tag := range filter.Tags {
		if !st.HasTag(tag) {
			return false
		}
	}
	return true
}

func (s *Store) ListStartupsForUser(_ context.Context, userID string) ([]startup.Startup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]startup.Startup, 0)
	for _, st := range s.startups {
		if st.IsMember(userID) {
			result = append(result, cloneStartup(st))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) IncrementStartupCounter(_ context.Context, id string, counter storage.Counter) (startup.Startup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.startups[id]
	if !ok {
		return startup.Startup{}, fmt.Errorf("startup %s: %w", id, storage.ErrNotFound)
	}
	switch counter {
	case storage.CounterViews:
		st.ViewCount++
	case storage.CounterLikes:
		st.LikeCount++
	default:
		return startup.Startup{}, fmt.Errorf("unknown counter %q", counter)
	}
	s.startups[id] = st
	return cloneStartup(st), nil
}

func (s *Store) AddStartupInvestor(_ context.Context, id string, inv startup.Investor) (startup.Startup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.startups[id]
	if !ok {
		return startup.Startup{}, fmt.Errorf("startup %s: %w", id, storage.ErrNotFound)
	}
	if inv.Terms != "" {
		for _, existing := range st.Investors {
			if existing.Terms == inv.Terms {
				return cloneStartup(st), nil
			}
		}
	}
	st = cloneStartup(st)
	st.Investors = append(st.Investors, inv)
	st.CurrentFunding += inv.Amount
	st.UpdatedAt = time.Now().UTC()
	s.startups[id] = st
	return cloneStartup(st), nil
}

// InvestmentStore implementation ----------------------------------------------

func (s *Store) CreateInvestment(_ context.Context, inv investment.Investment) (investment.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = s.nextIDLocked()
	} else if _, exists := s.investments[inv.ID]; exists {
		return investment.Investment{}, fmt.Errorf("investment %s: %w", inv.ID, storage.ErrConflict)
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	s.investments[inv.ID] = inv
	return cloneInvestment(inv), nil
}

func (s *Store) UpdateInvestment(_ context.Context, inv investment.Investment) (investment.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.investments[inv.ID]
	if !ok {
		return investment.Investment{}, fmt.Errorf("investment %s: %w", inv.ID, storage.ErrNotFound)
	}
	inv.CreatedAt = original.CreatedAt
	inv.UpdatedAt = time.Now().UTC()
	s.investments[inv.ID] = cloneInvestment(inv)
	return cloneInvestment(inv), nil
}

func (s *Store) GetInvestment(_ context.Context, id string) (investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.investments[id]
	if !ok {
		return investment.Investment{}, fmt.Errorf("investment %s: %w", id, storage.ErrNotFound)
	}
	return cloneInvestment(inv), nil
}

func (s *Store) ListInvestmentsByInvestor(_ context.Context, investorID string) ([]investment.Investment, error) {
	return s.listInvestments(func(inv investment.Investment) bool { return inv.InvestorID == investorID }), nil
}

func (s *Store) ListInvestmentsByStartup(_ context.Context, startupID string) ([]investment.Investment, error) {
	return s.listInvestments(func(inv investment.Investment) bool { return inv.StartupID == startupID }), nil
}

func (s *Store) ListPendingInvestments(_ context.Context) ([]investment.Investment, error) {
	return s.listInvestments(func(inv investment.Investment) bool { return inv.Status == investment.StatusPending }), nil
}

func (s *Store) listInvestments(match func(investment.Investment) bool) []investment.Investment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]investment.Investment, 0)
	for _, inv := range s.investments {
		if match(inv) {
			result = append(result, cloneInvestment(inv))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// helpers ---------------------------------------------------------------------

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneProfile(p user.Profile) user.Profile {
	p.Skills = cloneStrings(p.Skills)
	p.Interests = cloneStrings(p.Interests)
	p.Experience = cloneSlice(p.Experience)
	p.Education = cloneSlice(p.Education)
	if p.InvestorProfile != nil {
		ip := *p.InvestorProfile
		ip.FocusAreas = cloneStrings(ip.FocusAreas)
		ip.PortfolioCompanies = cloneStrings(ip.PortfolioCompanies)
		p.InvestorProfile = &ip
	}
	return p
}

func cloneStartup(st startup.Startup) startup.Startup {
	st.CoFounderIDs = cloneStrings(st.CoFounderIDs)
	st.TeamMembers = cloneSlice(st.TeamMembers)
	st.Tags = cloneStrings(st.Tags)
	st.Investors = cloneSlice(st.Investors)
	st.Milestones = cloneSlice(st.Milestones)
	if st.PitchDeck != nil {
		pd := *st.PitchDeck
		st.PitchDeck = &pd
	}
	if st.FundingGoal != nil {
		goal := *st.FundingGoal
		st.FundingGoal = &goal
	}
	return st
}

func cloneInvestment(inv investment.Investment) investment.Investment {
	if inv.ConfirmedAt != nil {
		at := *inv.ConfirmedAt
		inv.ConfirmedAt = &at
	}
	return inv
}
