package startups

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novastack/service_layer/internal/app/domain/startup"
	"github.com/novastack/service_layer/internal/app/domain/user"
	"github.com/novastack/service_layer/internal/app/storage"
	"github.com/novastack/service_layer/internal/app/storage/memory"
	"github.com/novastack/service_layer/internal/errors"
	"github.com/novastack/service_layer/internal/monero"
)

type stubWallet struct {
	calls int
	err   error
}

func (w *stubWallet) CreateStartupWallet(_ context.Context, id string) (*monero.Address, error) {
	w.calls++
	if w.err != nil {
		return nil, w.err
	}
	return &monero.Address{Address: "8Startup" + id, AddressIndex: 7}, nil
}

func input(name string) CreateInput {
	return CreateInput{
		Name:        name,
		Tagline:     "Private payments for everyone",
		Description: "A wallet that respects you.",
		Industry:    "fintech",
		Stage:       startup.StageMVP,
		Tags:        []string{"privacy", "crypto"},
	}
}

func TestService_Create(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	st, err := svc.Create(ctx, "founder", input("  Nova  "))
	require.NoError(t, err)
	assert.Equal(t, "Nova", st.Name)
	assert.Equal(t, "founder", st.FounderID)
	assert.Equal(t, startup.StatusActive, st.Status)
	assert.True(t, st.IsPublic)
	assert.NotNil(t, st.Investors)

	missing := input("Nova")
	missing.Industry = " "
	_, err = svc.Create(ctx, "founder", missing)
	se := errors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, http.StatusBadRequest, se.HTTPStatus)
	assert.Equal(t, "Required fields: name, tagline, description, industry, stage", se.Message)

	badStage := input("Nova")
	badStage.Stage = "unicorn"
	_, err = svc.Create(ctx, "founder", badStage)
	assert.Equal(t, http.StatusBadRequest, errors.StatusOf(err))
}

func TestService_Get_VisibilityAndViews(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()
	st, err := svc.Create(ctx, "founder", input("Nova"))
	require.NoError(t, err)

	viewed, err := svc.Get(ctx, st.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), viewed.ViewCount)

	private := false
	_, err = svc.Update(ctx, st.ID, "founder", Patch{IsPublic: &private})
	require.NoError(t, err)

	_, err = svc.Get(ctx, st.ID, "stranger")
	assert.Equal(t, http.StatusForbidden, errors.StatusOf(err))

	own, err := svc.Get(ctx, st.ID, "founder")
	require.NoError(t, err)
	assert.Equal(t, int64(2), own.ViewCount)

	_, err = svc.Get(ctx, "missing", "")
	assert.Equal(t, http.StatusNotFound, errors.StatusOf(err))
	assert.True(t, stderrors.Is(err, storage.ErrNotFound))
}

func TestService_Update_Permissions(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()
	st, err := svc.Create(ctx, "founder", input("Nova"))
	require.NoError(t, err)

	name := "Nova Labs"
	_, err = svc.Update(ctx, st.ID, "stranger", Patch{Name: &name})
	se := errors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, http.StatusForbidden, se.HTTPStatus)
	assert.Equal(t, "Access denied. Only founders and co-founders can update startup", se.Message)

	goal := 5000.0
	stage := startup.StageGrowth
	updated, err := svc.Update(ctx, st.ID, "founder", Patch{Name: &name, FundingGoal: &goal, Stage: &stage})
	require.NoError(t, err)
	assert.Equal(t, "Nova Labs", updated.Name)
	assert.Equal(t, startup.StageGrowth, updated.Stage)
	require.NotNil(t, updated.FundingGoal)
	assert.Equal(t, 5000.0, *updated.FundingGoal)

	empty := ""
	_, err = svc.Update(ctx, st.ID, "founder", Patch{Tagline: &empty})
	assert.Equal(t, http.StatusBadRequest, errors.StatusOf(err))
}

func TestService_AddTeamMember(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()
	st, err := svc.Create(ctx, "founder", input("Nova"))
	require.NoError(t, err)

	equity := 5.0
	updated, err := svc.AddTeamMember(ctx, st.ID, "founder", TeamMemberInput{UserID: "dev", Role: "CTO", Equity: &equity})
	require.NoError(t, err)
	require.Len(t, updated.TeamMembers, 1)
	assert.Equal(t, "CTO", updated.TeamMembers[0].Role)
	assert.False(t, updated.TeamMembers[0].JoinedAt.IsZero())

	_, err = svc.AddTeamMember(ctx, st.ID, "founder", TeamMemberInput{UserID: "dev", Role: "CEO"})
	se := errors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, "User is already a team member", se.Message)

	_, err = svc.AddTeamMember(ctx, st.ID, "dev", TeamMemberInput{UserID: "other", Role: "Designer"})
	assert.Equal(t, http.StatusForbidden, errors.StatusOf(err))

	tooMuch := 150.0
	_, err = svc.AddTeamMember(ctx, st.ID, "founder", TeamMemberInput{UserID: "greedy", Role: "Advisor", Equity: &tooMuch})
	assert.Equal(t, http.StatusBadRequest, errors.StatusOf(err))

	mine, err := svc.ListForUser(ctx, "dev", "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, st.ID, mine[0].ID)
}

func TestService_LikeAndTrending(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	quiet, err := svc.Create(ctx, "f1", input("Quiet"))
	require.NoError(t, err)
	busy, err := svc.Create(ctx, "f2", input("Busy"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Get(ctx, busy.ID, "")
		require.NoError(t, err)
	}
	liked, err := svc.Like(ctx, quiet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), liked.LikeCount)

	trending, err := svc.Trending(ctx)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, busy.ID, trending[0].ID)

	_, err = svc.Like(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, errors.StatusOf(err))
}

func TestService_List_OnlyPublicActive(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	open, err := svc.Create(ctx, "f1", input("Open"))
	require.NoError(t, err)
	hidden, err := svc.Create(ctx, "f2", input("Hidden"))
	require.NoError(t, err)
	private := false
	_, err = svc.Update(ctx, hidden.ID, "f2", Patch{IsPublic: &private})
	require.NoError(t, err)

	list, err := svc.List(ctx, storage.StartupFilter{Industry: "fintech"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	forOwner, err := svc.ListForUser(ctx, "f2", "f2")
	require.NoError(t, err)
	assert.Len(t, forOwner, 1)
	forStranger, err := svc.ListForUser(ctx, "f2", "")
	require.NoError(t, err)
	assert.Empty(t, forStranger)
}

func TestService_AttachWallet(t *testing.T) {
	wallet := &stubWallet{}
	svc := New(memory.New(), wallet, nil)
	ctx := context.Background()
	st, err := svc.Create(ctx, "founder", input("Nova"))
	require.NoError(t, err)

	_, err = svc.AttachWallet(ctx, st.ID, "stranger")
	assert.Equal(t, http.StatusForbidden, errors.StatusOf(err))

	withWallet, err := svc.AttachWallet(ctx, st.ID, "founder")
	require.NoError(t, err)
	assert.Equal(t, "8Startup"+st.ID, withWallet.MoneroAddress)

	_, err = svc.AttachWallet(ctx, st.ID, "founder")
	require.NoError(t, err)
	assert.Equal(t, 1, wallet.calls)
}

func TestService_RecordInvestor(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()
	st, err := svc.Create(ctx, "founder", input("Nova"))
	require.NoError(t, err)

	_, err = svc.RecordInvestor(ctx, st.ID, "alice", 1.5, "")
	require.NoError(t, err)
	funded, err := svc.RecordInvestor(ctx, st.ID, "bob", 0.25, "")
	require.NoError(t, err)

	assert.Len(t, funded.Investors, 2)
	assert.InDelta(t, 1.75, funded.CurrentFunding, 1e-9)

	_, err = svc.RecordInvestor(ctx, st.ID, "eve", -1, "")
	assert.Equal(t, http.StatusBadRequest, errors.StatusOf(err))
}

type stubMembers map[string]bool

func (m stubMembers) GetUser(_ context.Context, id string) (user.Profile, error) {
	if !m[id] {
		return user.Profile{}, storage.ErrNotFound
	}
	return user.Profile{ID: id}, nil
}

func TestService_AddTeamMember_UnknownUser(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	svc.AttachMembers(stubMembers{"dev": true})
	ctx := context.Background()
	st, err := svc.Create(ctx, "founder", input("Nova"))
	require.NoError(t, err)

	_, err = svc.AddTeamMember(ctx, st.ID, "founder", TeamMemberInput{UserID: "ghost", Role: "CTO"})
	se := errors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, http.StatusNotFound, se.HTTPStatus)
	assert.Equal(t, "User not found", se.Message)

	_, err = svc.AddTeamMember(ctx, st.ID, "founder", TeamMemberInput{UserID: "dev", Role: "CTO"})
	require.NoError(t, err)
}
