package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novastack/service_layer/internal/app/domain/startup"
	"github.com/novastack/service_layer/internal/app/storage"
)

var startupColumns = []string{
	"id", "name", "tagline", "description", "logo", "website", "industry",
	"stage", "status", "founder_id", "co_founder_ids", "team_members", "tags",
	"pitch_deck", "business_model", "target_market", "competitive_advantage",
	"revenue_model", "funding_goal", "current_funding", "investors",
	"milestones", "metrics", "social_links", "is_public", "is_featured",
	"view_count", "like_count", "comment_count", "monero_address",
	"created_at", "updated_at",
}

type startupRow struct {
	ID                   string          `db:"id"`
	Name                 string          `db:"name"`
	Tagline              string          `db:"tagline"`
	Description          string          `db:"description"`
	Logo                 string          `db:"logo"`
	Website              string          `db:"website"`
	Industry             string          `db:"industry"`
	Stage                string          `db:"stage"`
	Status               string          `db:"status"`
	FounderID            string          `db:"founder_id"`
	CoFounderIDs         []byte          `db:"co_founder_ids"`
	TeamMembers          []byte          `db:"team_members"`
	Tags                 []byte          `db:"tags"`
	PitchDeck            []byte          `db:"pitch_deck"`
	BusinessModel        string          `db:"business_model"`
	TargetMarket         string          `db:"target_market"`
	CompetitiveAdvantage string          `db:"competitive_advantage"`
	RevenueModel         string          `db:"revenue_model"`
	FundingGoal          sql.NullFloat64 `db:"funding_goal"`
	CurrentFunding       float64         `db:"current_funding"`
	Investors            []byte          `db:"investors"`
	Milestones           []byte          `db:"milestones"`
	Metrics              []byte          `db:"metrics"`
	SocialLinks          []byte          `db:"social_links"`
	IsPublic             bool            `db:"is_public"`
	IsFeatured           bool            `db:"is_featured"`
	ViewCount            int64           `db:"view_count"`
	LikeCount            int64           `db:"like_count"`
	CommentCount         int64           `db:"comment_count"`
	MoneroAddress        string          `db:"monero_address"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

func (r startupRow) toStartup() (startup.Startup, error) {
	st := startup.Startup{
		ID:                   r.ID,
		Name:                 r.Name,
		Tagline:              r.Tagline,
		Description:          r.Description,
		Logo:                 r.Logo,
		Website:              r.Website,
		Industry:             r.Industry,
		Stage:                startup.Stage(r.Stage),
		Status:               startup.Status(r.Status),
		FounderID:            r.FounderID,
		BusinessModel:        r.BusinessModel,
		TargetMarket:         r.TargetMarket,
		CompetitiveAdvantage: r.CompetitiveAdvantage,
		RevenueModel:         r.RevenueModel,
		CurrentFunding:       r.CurrentFunding,
		IsPublic:             r.IsPublic,
		IsFeatured:           r.IsFeatured,
		ViewCount:            r.ViewCount,
		LikeCount:            r.LikeCount,
		CommentCount:         r.CommentCount,
		MoneroAddress:        r.MoneroAddress,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.FundingGoal.Valid {
		goal := r.FundingGoal.Float64
		st.FundingGoal = &goal
	}
	for _, f := range []struct {
		raw []byte
		dst interface{}
	}{
		{r.CoFounderIDs, &st.CoFounderIDs},
		{r.TeamMembers, &st.TeamMembers},
		{r.Tags, &st.Tags},
		{r.Investors, &st.Investors},
		{r.Milestones, &st.Milestones},
		{r.Metrics, &st.Metrics},
		{r.SocialLinks, &st.SocialLinks},
	} {
		if err := unmarshalJSONB(f.raw, f.dst); err != nil {
			return startup.Startup{}, err
		}
	}
	if len(r.PitchDeck) > 0 && string(r.PitchDeck) != "null" {
		var pd startup.PitchDeck
		if err := unmarshalJSONB(r.PitchDeck, &pd); err != nil {
			return startup.Startup{}, err
		}
		st.PitchDeck = &pd
	}
	st.Normalize()
	return st, nil
}

// startupArgs returns the column values in startupColumns order.
func startupArgs(st startup.Startup) ([]interface{}, error) {
	var fundingGoal sql.NullFloat64
	if st.FundingGoal != nil {
		fundingGoal = sql.NullFloat64{Float64: *st.FundingGoal, Valid: true}
	}

	encoded := make(map[string][]byte, 8)
	for name, v := range map[string]interface{}{
		"co_founder_ids": st.CoFounderIDs,
		"team_members":   st.TeamMembers,
		"tags":           st.Tags,
		"investors":      st.Investors,
		"milestones":     st.Milestones,
	} {
		b, err := marshalJSONB(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		encoded[name] = b
	}
	metrics, err := json.Marshal(st.Metrics)
	if err != nil {
		return nil, err
	}
	social, err := json.Marshal(st.SocialLinks)
	if err != nil {
		return nil, err
	}
	pitchDeck, err := marshalNullableJSONB(st.PitchDeck, st.PitchDeck == nil)
	if err != nil {
		return nil, err
	}

	return []interface{}{
		st.ID, st.Name, st.Tagline, st.Description, st.Logo, st.Website, st.Industry,
		string(st.Stage), string(st.Status), st.FounderID, encoded["co_founder_ids"], encoded["team_members"], encoded["tags"],
		pitchDeck, st.BusinessModel, st.TargetMarket, st.CompetitiveAdvantage,
		st.RevenueModel, fundingGoal, st.CurrentFunding, encoded["investors"],
		encoded["milestones"], metrics, social, st.IsPublic, st.IsFeatured,
		st.ViewCount, st.LikeCount, st.CommentCount, st.MoneroAddress,
		st.CreatedAt, st.UpdatedAt,
	}, nil
}

func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}

// --- StartupStore -----------------------------------------------------------

func (s *Store) CreateStartup(ctx context.Context, st startup.Startup) (startup.Startup, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	if st.Metrics.LastUpdated.IsZero() {
		st.Metrics.LastUpdated = now
	}

	args, err := startupArgs(st)
	if err != nil {
		return startup.Startup{}, err
	}
	query := `INSERT INTO startups (` + columnList(startupColumns) + `) VALUES (` + placeholders(1, len(startupColumns)) + `)`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return startup.Startup{}, mapError(err, "create startup")
	}
	return st, nil
}

// ownedStartupColumns are written only by IncrementStartupCounter and
// AddStartupInvestor, so a read-modify-write edit cannot roll them back.
var ownedStartupColumns = map[string]bool{
	"id": true, "created_at": true,
	"current_funding": true, "investors": true,
	"view_count": true, "like_count": true, "comment_count": true,
}

func (s *Store) UpdateStartup(ctx context.Context, st startup.Startup) (startup.Startup, error) {
	st.UpdatedAt = time.Now().UTC()

	args, err := startupArgs(st)
	if err != nil {
		return startup.Startup{}, err
	}

	// id stays $1.
	sets := make([]string, 0, len(startupColumns))
	updateArgs := []interface{}{st.ID}
	for i, col := range startupColumns {
		if ownedStartupColumns[col] {
			continue
		}
		updateArgs = append(updateArgs, args[i])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(updateArgs)))
	}
	query := `UPDATE startups SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + columnList(startupColumns)

	var row startupRow
	if err := s.db.GetContext(ctx, &row, query, updateArgs...); err != nil {
		return startup.Startup{}, mapError(err, "update startup")
	}
	return row.toStartup()
}

func (s *Store) GetStartup(ctx context.Context, id string) (startup.Startup, error) {
	var row startupRow
	query := `SELECT ` + columnList(startupColumns) + ` FROM startups WHERE id = $1`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return startup.Startup{}, mapError(err, "get startup")
	}
	return row.toStartup()
}

func (s *Store) ListStartups(ctx context.Context, filter storage.StartupFilter) ([]startup.Startup, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.PublicActiveOnly {
		where = append(where, "is_public = TRUE", "status = 'active'")
	}
	if filter.Industry != "" {
		add("industry = $%d", filter.Industry)
	}
	if filter.Stage != "" {
		add("stage = $%d", string(filter.Stage))
	}
	if filter.Featured != nil {
		add("is_featured = $%d", *filter.Featured)
	}
	if len(filter.Tags) > 0 {
		tags, err := json.Marshal(filter.Tags)
		if err != nil {
			return nil, err
		}
		add("tags @> $%d::jsonb", tags)
	}

	query := `SELECT ` + columnList(startupColumns) + ` FROM startups`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	switch filter.Sort {
	case storage.SortTrending:
		query += ` ORDER BY view_count DESC, like_count DESC`
	default:
		query += ` ORDER BY is_featured DESC, created_at DESC`
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	return s.selectStartups(ctx, "list startups", query, args...)
}

func (s *Store) ListStartupsForUser(ctx context.Context, userID string) ([]startup.Startup, error) {
	query := `SELECT ` + columnList(startupColumns) + ` FROM startups
		WHERE founder_id = $1
		   OR co_founder_ids @> jsonb_build_array($1::text)
		   OR team_members @> jsonb_build_array(jsonb_build_object('userId', $1::text))
		ORDER BY created_at DESC`
	return s.selectStartups(ctx, "list user startups", query, userID)
}

func (s *Store) selectStartups(ctx context.Context, what, query string, args ...interface{}) ([]startup.Startup, error) {
	var rows []startupRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err, what)
	}
	result := make([]startup.Startup, 0, len(rows))
	for _, row := range rows {
		st, err := row.toStartup()
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, nil
}

func (s *Store) IncrementStartupCounter(ctx context.Context, id string, counter storage.Counter) (startup.Startup, error) {
	switch counter {
	case storage.CounterViews, storage.CounterLikes:
	default:
		return startup.Startup{}, fmt.Errorf("unknown counter %q", counter)
	}
	col := string(counter)

	var row startupRow
	query := `UPDATE startups SET ` + col + ` = ` + col + ` + 1 WHERE id = $1 RETURNING ` + columnList(startupColumns)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return startup.Startup{}, mapError(err, "increment "+col)
	}
	return row.toStartup()
}

// AddStartupInvestor credits inv to the startup. An investor entry with the
// same non-empty Terms is only credited once.
func (s *Store) AddStartupInvestor(ctx context.Context, id string, inv startup.Investor) (startup.Startup, error) {
	entry, err := json.Marshal(inv)
	if err != nil {
		return startup.Startup{}, err
	}

	var row startupRow
	query := `UPDATE startups
		SET investors = investors || jsonb_build_array($2::jsonb),
		    current_funding = current_funding + $3,
		    updated_at = $4
		WHERE id = $1
		  AND ($5::text = '' OR NOT investors @> jsonb_build_array(jsonb_build_object('terms', $5::text)))
		RETURNING ` + columnList(startupColumns)
	err = s.db.GetContext(ctx, &row, query, id, entry, inv.Amount, time.Now().UTC(), inv.Terms)
	if errors.Is(err, sql.ErrNoRows) && inv.Terms != "" {
		// Either the startup is missing or this credit was already applied.
		return s.GetStartup(ctx, id)
	}
	if err != nil {
		return startup.Startup{}, mapError(err, "add investor")
	}
	return row.toStartup()
}
