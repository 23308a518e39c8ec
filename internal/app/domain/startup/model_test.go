package startup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validStartup() Startup {
	s := Startup{
		Name:        " Nova ",
		Tagline:     "Private funding",
		Description: "Monero-native fundraising",
		Industry:    "fintech",
		Stage:       StageMVP,
		FounderID:   "founder",
		IsPublic:    true,
	}
	s.Normalize()
	return s
}

func TestFundingProgress(t *testing.T) {
	s := validStartup()
	assert.Equal(t, 0.0, s.FundingProgress())

	goal := 0.0
	s.FundingGoal = &goal
	s.CurrentFunding = 50
	assert.Equal(t, 0.0, s.FundingProgress())

	goal = 200
	assert.Equal(t, 25.0, s.FundingProgress())

	s.CurrentFunding = 500
	assert.Equal(t, 100.0, s.FundingProgress())
}

func TestTeamSize(t *testing.T) {
	s := validStartup()
	assert.Equal(t, 1, s.TeamSize())

	s.CoFounderIDs = []string{"c1", "c2"}
	s.TeamMembers = []TeamMember{{UserID: "m1", Role: "cto"}}
	assert.Equal(t, 4, s.TeamSize())
}

func TestAccessRules(t *testing.T) {
	s := validStartup()
	s.CoFounderIDs = []string{"co"}
	s.TeamMembers = []TeamMember{{UserID: "member", Role: "dev"}}

	assert.True(t, s.CanEdit("founder"))
	assert.True(t, s.CanEdit("co"))
	assert.False(t, s.CanEdit("member"))
	assert.False(t, s.CanEdit(""))

	s.IsPublic = false
	assert.True(t, s.CanView("member"))
	assert.True(t, s.CanView("co"))
	assert.False(t, s.CanView("stranger"))
	assert.False(t, s.CanView(""))

	s.IsPublic = true
	assert.True(t, s.CanView(""))
}

func TestNormalizeAndValidate(t *testing.T) {
	s := validStartup()
	assert.Equal(t, "Nova", s.Name)
	assert.Equal(t, StatusActive, s.Status)
	assert.NotNil(t, s.Tags)
	assert.NoError(t, s.Validate())

	s.Stage = "series-z"
	s.Name = strings.Repeat("n", MaxNameLength+1)
	err := s.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stage")
	assert.Contains(t, err.Error(), "name must be at most")
}

func TestValidate_NestedConstraints(t *testing.T) {
	s := validStartup()
	equity := 120.0
	growth := -150.0
	s.TeamMembers = []TeamMember{{UserID: "m", Role: "dev", Equity: &equity}}
	s.Metrics.Growth = &growth
	s.Investors = []Investor{{UserID: "i", Amount: -1}}

	err := s.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "equity")
	assert.Contains(t, err.Error(), "growth")
	assert.Contains(t, err.Error(), "investors[0]")
}
