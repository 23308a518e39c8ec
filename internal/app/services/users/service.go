// Package users manages member profiles.
package users

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/novastack/service_layer/internal/app/domain/user"
	"github.com/novastack/service_layer/internal/app/storage"
	"github.com/novastack/service_layer/internal/errors"
	"github.com/novastack/service_layer/internal/monero"
	"github.com/novastack/service_layer/pkg/logger"
)

// Wallet provisions per-member subaddresses.
type Wallet interface {
	CreateUserWallet(ctx context.Context, userID string) (*monero.Address, error)
}

// Service manages member profiles.
type Service struct {
	store  storage.UserStore
	wallet Wallet
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a user service. wallet may be nil, in which case
// AttachWallet reports the wallet as unavailable.
func New(store storage.UserStore, wallet Wallet, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{
		store:  store,
		wallet: wallet,
		log:    log,
		now:    time.Now,
	}
}

// CreateInput is the payload accepted when a member provisions a profile.
type CreateInput struct {
	Email           string                `json:"email"`
	FirstName       string                `json:"firstName"`
	LastName        string                `json:"lastName"`
	Username        string                `json:"username"`
	Bio             string                `json:"bio"`
	Location        string                `json:"location"`
	Website         string                `json:"website"`
	LinkedIn        string                `json:"linkedIn"`
	Twitter         string                `json:"twitter"`
	GitHub          string                `json:"github"`
	Skills          []string              `json:"skills"`
	Interests       []string              `json:"interests"`
	IsInvestor      bool                  `json:"isInvestor"`
	InvestorProfile *user.InvestorProfile `json:"investorProfile"`
}

// Patch lists the fields a member may change on their own profile. Nil
// fields are left untouched.
type Patch struct {
	FirstName *string   `json:"firstName"`
	LastName  *string   `json:"lastName"`
	Bio       *string   `json:"bio"`
	Location  *string   `json:"location"`
	Website   *string   `json:"website"`
	LinkedIn  *string   `json:"linkedIn"`
	Twitter   *string   `json:"twitter"`
	GitHub    *string   `json:"github"`
	Skills    *[]string `json:"skills"`
	Interests *[]string `json:"interests"`
}

// CreateProfile provisions the profile of an authenticated subject. The
// subject ID asserted by the bearer token becomes the profile ID.
func (s *Service) CreateProfile(ctx context.Context, subjectID string, in CreateInput) (user.Profile, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return user.Profile{}, errors.Unauthorized("Authentication required")
	}

	p := user.Profile{
		ID:              subjectID,
		Email:           in.Email,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Username:        in.Username,
		Bio:             strings.TrimSpace(in.Bio),
		Location:        strings.TrimSpace(in.Location),
		Website:         strings.TrimSpace(in.Website),
		LinkedIn:        strings.TrimSpace(in.LinkedIn),
		Twitter:         strings.TrimSpace(in.Twitter),
		GitHub:          strings.TrimSpace(in.GitHub),
		Skills:          in.Skills,
		Interests:       in.Interests,
		IsInvestor:      in.IsInvestor,
		InvestorProfile: in.InvestorProfile,
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return user.Profile{}, errors.Validation(err.Error())
	}

	created, err := s.store.CreateUser(ctx, p)
	if err != nil {
		if stderrors.Is(err, storage.ErrConflict) {
			return user.Profile{}, errors.Wrap(err, errors.CodeConflict, http.StatusConflict, "User with this email or username already exists")
		}
		return user.Profile{}, err
	}
	s.log.WithContext(ctx).
		WithField("user_id", created.ID).
		WithField("username", created.Username).
		Info("user profile created")
	return created, nil
}

// Get returns the full profile, email included.
func (s *Service) Get(ctx context.Context, id string) (user.Profile, error) {
	p, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.Profile{}, storeError(err)
	}
	return p, nil
}

// GetByUsername looks a member up by handle. The email is hidden unless the
// viewer is the member.
func (s *Service) GetByUsername(ctx context.Context, username, viewerID string) (user.Profile, error) {
	p, err := s.store.GetUserByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return user.Profile{}, storeError(err)
	}
	if viewerID == "" || viewerID != p.ID {
		return p.Public(), nil
	}
	return p, nil
}

// UpdateProfile applies patch to the member's own profile.
func (s *Service) UpdateProfile(ctx context.Context, id string, patch Patch) (user.Profile, error) {
	p, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.Profile{}, storeError(err)
	}

	setString(&p.FirstName, patch.FirstName)
	setString(&p.LastName, patch.LastName)
	setString(&p.Bio, patch.Bio)
	setString(&p.Location, patch.Location)
	setString(&p.Website, patch.Website)
	setString(&p.LinkedIn, patch.LinkedIn)
	setString(&p.Twitter, patch.Twitter)
	setString(&p.GitHub, patch.GitHub)
	if patch.Skills != nil {
		p.Skills = *patch.Skills
	}
	if patch.Interests != nil {
		p.Interests = *patch.Interests
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return user.Profile{}, errors.Validation(err.Error())
	}

	updated, err := s.store.UpdateUser(ctx, p)
	if err != nil {
		return user.Profile{}, storeError(err)
	}
	s.log.WithContext(ctx).WithField("user_id", id).Info("user profile updated")
	return updated, nil
}

// Touch records activity for id.
func (s *Service) Touch(ctx context.Context, id string) error {
	return s.store.TouchUser(ctx, id, s.now().UTC())
}

// List returns public profiles ordered by reputation, then newest.
func (s *Service) List(ctx context.Context, filter storage.UserFilter) ([]user.Profile, error) {
	profiles, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		profiles[i] = profiles[i].Public()
	}
	return profiles, nil
}

// AttachWallet gives the member a receiving subaddress. A member that
// already has one keeps it.
func (s *Service) AttachWallet(ctx context.Context, id string) (user.Profile, error) {
	p, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.Profile{}, storeError(err)
	}
	if p.MoneroAddress != "" {
		return p, nil
	}
	if s.wallet == nil {
		return user.Profile{}, errors.Unavailable("Wallet service is not configured")
	}

	addr, err := s.wallet.CreateUserWallet(ctx, id)
	if err != nil {
		return user.Profile{}, errors.Upstream("Failed to create wallet", err)
	}
	p.MoneroAddress = addr.Address
	updated, err := s.store.UpdateUser(ctx, p)
	if err != nil {
		return user.Profile{}, storeError(err)
	}
	s.log.WithContext(ctx).
		WithField("user_id", id).
		WithField("address_index", addr.AddressIndex).
		Info("user wallet created")
	return updated, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func storeError(err error) error {
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.Wrap(err, errors.CodeNotFound, http.StatusNotFound, "User not found")
	case stderrors.Is(err, storage.ErrConflict):
		return errors.Wrap(err, errors.CodeConflict, http.StatusConflict, "User with this email or username already exists")
	}
	return err
}
