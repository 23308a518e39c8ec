package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/novastack/service_layer/internal/app/domain/user"
	"github.com/novastack/service_layer/internal/app/storage"
)

var userColumns = []string{
	"id", "email", "username", "first_name", "last_name", "avatar", "bio",
	"location", "website", "linkedin", "twitter", "github", "skills",
	"interests", "experience", "education", "reputation_score", "is_verified",
	"is_investor", "investor_profile", "subscription_tier", "monero_address",
	"created_at", "updated_at", "last_active",
}

type userRow struct {
	ID               string    `db:"id"`
	Email            string    `db:"email"`
	Username         string    `db:"username"`
	FirstName        string    `db:"first_name"`
	LastName         string    `db:"last_name"`
	Avatar           string    `db:"avatar"`
	Bio              string    `db:"bio"`
	Location         string    `db:"location"`
	Website          string    `db:"website"`
	LinkedIn         string    `db:"linkedin"`
	Twitter          string    `db:"twitter"`
	GitHub           string    `db:"github"`
	Skills           []byte    `db:"skills"`
	Interests        []byte    `db:"interests"`
	Experience       []byte    `db:"experience"`
	Education        []byte    `db:"education"`
	ReputationScore  int       `db:"reputation_score"`
	IsVerified       bool      `db:"is_verified"`
	IsInvestor       bool      `db:"is_investor"`
	InvestorProfile  []byte    `db:"investor_profile"`
	SubscriptionTier string    `db:"subscription_tier"`
	MoneroAddress    string    `db:"monero_address"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
	LastActive       time.Time `db:"last_active"`
}

func (r userRow) toProfile() (user.Profile, error) {
	p := user.Profile{
		ID:               r.ID,
		Email:            r.Email,
		Username:         r.Username,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		Avatar:           r.Avatar,
		Bio:              r.Bio,
		Location:         r.Location,
		Website:          r.Website,
		LinkedIn:         r.LinkedIn,
		Twitter:          r.Twitter,
		GitHub:           r.GitHub,
		ReputationScore:  r.ReputationScore,
		IsVerified:       r.IsVerified,
		IsInvestor:       r.IsInvestor,
		SubscriptionTier: user.Tier(r.SubscriptionTier),
		MoneroAddress:    r.MoneroAddress,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		LastActive:       r.LastActive,
	}
	for _, f := range []struct {
		raw []byte
		dst interface{}
	}{
		{r.Skills, &p.Skills},
		{r.Interests, &p.Interests},
		{r.Experience, &p.Experience},
		{r.Education, &p.Education},
	} {
		if err := unmarshalJSONB(f.raw, f.dst); err != nil {
			return user.Profile{}, err
		}
	}
	if len(r.InvestorProfile) > 0 && string(r.InvestorProfile) != "null" {
		var ip user.InvestorProfile
		if err := unmarshalJSONB(r.InvestorProfile, &ip); err != nil {
			return user.Profile{}, err
		}
		p.InvestorProfile = &ip
	}
	p.Normalize()
	return p, nil
}

type userJSON struct {
	skills, interests, experience, education []byte
	investorProfile                          interface{}
}

func encodeUser(p user.Profile) (userJSON, error) {
	var (
		out userJSON
		err error
	)
	if out.skills, err = marshalJSONB(p.Skills); err != nil {
		return out, err
	}
	if out.interests, err = marshalJSONB(p.Interests); err != nil {
		return out, err
	}
	if out.experience, err = marshalJSONB(p.Experience); err != nil {
		return out, err
	}
	if out.education, err = marshalJSONB(p.Education); err != nil {
		return out, err
	}
	out.investorProfile, err = marshalNullableJSONB(p.InvestorProfile, p.InvestorProfile == nil)
	return out, err
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, p user.Profile) (user.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.LastActive.IsZero() {
		p.LastActive = now
	}

	js, err := encodeUser(p)
	if err != nil {
		return user.Profile{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, username, first_name, last_name, avatar, bio,
			location, website, linkedin, twitter, github, skills, interests,
			experience, education, reputation_score, is_verified, is_investor,
			investor_profile, subscription_tier, monero_address, created_at,
			updated_at, last_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`, p.ID, p.Email, p.Username, p.FirstName, p.LastName, p.Avatar, p.Bio,
		p.Location, p.Website, p.LinkedIn, p.Twitter, p.GitHub, js.skills, js.interests,
		js.experience, js.education, p.ReputationScore, p.IsVerified, p.IsInvestor,
		js.investorProfile, string(p.SubscriptionTier), p.MoneroAddress, p.CreatedAt,
		p.UpdatedAt, p.LastActive)
	if err != nil {
		return user.Profile{}, mapError(err, "create user")
	}
	return p, nil
}

func (s *Store) UpdateUser(ctx context.Context, p user.Profile) (user.Profile, error) {
	existing, err := s.GetUser(ctx, p.ID)
	if err != nil {
		return user.Profile{}, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	js, err := encodeUser(p)
	if err != nil {
		return user.Profile{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, username = $3, first_name = $4, last_name = $5, avatar = $6,
			bio = $7, location = $8, website = $9, linkedin = $10, twitter = $11,
			github = $12, skills = $13, interests = $14, experience = $15,
			education = $16, reputation_score = $17, is_verified = $18,
			is_investor = $19, investor_profile = $20, subscription_tier = $21,
			monero_address = $22, updated_at = $23, last_active = $24
		WHERE id = $1
	`, p.ID, p.Email, p.Username, p.FirstName, p.LastName, p.Avatar,
		p.Bio, p.Location, p.Website, p.LinkedIn, p.Twitter,
		p.GitHub, js.skills, js.interests, js.experience,
		js.education, p.ReputationScore, p.IsVerified,
		p.IsInvestor, js.investorProfile, string(p.SubscriptionTier),
		p.MoneroAddress, p.UpdatedAt, p.LastActive)
	if err != nil {
		return user.Profile{}, mapError(err, "update user")
	}
	if err := requireAffected(result, "update user"); err != nil {
		return user.Profile{}, err
	}
	return p, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.Profile, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.Profile, error) {
	return s.getUser(ctx, "username", username)
}

func (s *Store) getUser(ctx context.Context, column, value string) (user.Profile, error) {
	var row userRow
	query := `SELECT ` + columnList(userColumns) + ` FROM users WHERE ` + column + ` = $1`
	if err := s.db.GetContext(ctx, &row, query, value); err != nil {
		return user.Profile{}, mapError(err, "get user")
	}
	return row.toProfile()
}

func (s *Store) ListUsers(ctx context.Context, filter storage.UserFilter) ([]user.Profile, error) {
	query := `SELECT ` + columnList(userColumns) + ` FROM users
		WHERE ($1 = '' OR skills @> jsonb_build_array($1::text))
		  AND ($2 = '' OR interests @> jsonb_build_array($2::text))
		ORDER BY reputation_score DESC, created_at DESC`
	args := []interface{}{filter.Skill, filter.Interest}
	if filter.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, filter.Limit)
	}

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err, "list users")
	}
	result := make([]user.Profile, 0, len(rows))
	for _, row := range rows {
		p, err := row.toProfile()
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *Store) TouchUser(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_active = $2 WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return mapError(err, "touch user")
	}
	return requireAffected(result, "touch user")
}
