package startup

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Stage is the maturity of a startup.
type Stage string

const (
	StageIdea       Stage = "idea"
	StagePrototype  Stage = "prototype"
	StageMVP        Stage = "mvp"
	StageEarlyStage Stage = "early-stage"
	StageGrowth     Stage = "growth"
	StageScale      Stage = "scale"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageIdea, StagePrototype, StageMVP, StageEarlyStage, StageGrowth, StageScale:
		return true
	}
	return false
}

// Status is the lifecycle state of a startup listing.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

const (
	MaxNameLength        = 100
	MaxTaglineLength     = 200
	MaxDescriptionLength = 2000
)

type TeamMember struct {
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	Equity   *float64  `json:"equity,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

type PitchDeck struct {
	URL        string     `json:"url"`
	UploadedAt *time.Time `json:"uploadedAt,omitempty"`
}

type Investor struct {
	UserID     string    `json:"userId"`
	Amount     float64   `json:"amount"`
	InvestedAt time.Time `json:"investedAt"`
	Terms      string    `json:"terms,omitempty"`
}

type Milestone struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Metrics struct {
	Users       *int64    `json:"users,omitempty"`
	Revenue     *float64  `json:"revenue,omitempty"`
	Growth      *float64  `json:"growth,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type SocialLinks struct {
	Twitter   string `json:"twitter,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

// Startup is a venture listed on NovaStack.
type Startup struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Tagline              string       `json:"tagline"`
	Description          string       `json:"description"`
	Logo                 string       `json:"logo,omitempty"`
	Website              string       `json:"website,omitempty"`
	Industry             string       `json:"industry"`
	Stage                Stage        `json:"stage"`
	Status               Status       `json:"status"`
	FounderID            string       `json:"founderId"`
	CoFounderIDs         []string     `json:"coFounderIds"`
	TeamMembers          []TeamMember `json:"teamMembers"`
	Tags                 []string     `json:"tags"`
	PitchDeck            *PitchDeck   `json:"pitchDeck,omitempty"`
	BusinessModel        string       `json:"businessModel,omitempty"`
	TargetMarket         string       `json:"targetMarket,omitempty"`
	CompetitiveAdvantage string       `json:"competitiveAdvantage,omitempty"`
	RevenueModel         string       `json:"revenueModel,omitempty"`
	FundingGoal          *float64     `json:"fundingGoal,omitempty"`
	CurrentFunding       float64      `json:"currentFunding"`
	Investors            []Investor   `json:"investors"`
	Milestones           []Milestone  `json:"milestones"`
	Metrics              Metrics      `json:"metrics"`
	SocialLinks          SocialLinks  `json:"socialLinks"`
	IsPublic             bool         `json:"isPublic"`
	IsFeatured           bool         `json:"isFeatured"`
	ViewCount            int64        `json:"viewCount"`
	LikeCount            int64        `json:"likeCount"`
	CommentCount         int64        `json:"commentCount"`
	MoneroAddress        string       `json:"moneroAddress,omitempty"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// FundingProgress is the percentage of the funding goal raised, capped at 100.
func (s Startup) FundingProgress() float64 {
	if s.FundingGoal == nil || *s.FundingGoal == 0 {
		return 0
	}
	progress := s.CurrentFunding / *s.FundingGoal * 100
	if progress > 100 {
		return 100
	}
	return progress
}

// TeamSize counts the founder, co-founders and team members.
func (s Startup) TeamSize() int {
	return 1 + len(s.CoFounderIDs) + len(s.TeamMembers)
}

// CanEdit reports whether userID may modify the listing.
func (s Startup) CanEdit(userID string) bool {
	if userID == "" {
		return false
	}
	if s.FounderID == userID {
		return true
	}
	return containsID(s.CoFounderIDs, userID)
}

// IsMember reports whether userID is founder, co-founder or team member.
func (s Startup) IsMember(userID string) bool {
	if s.CanEdit(userID) {
		return true
	}
	if userID == "" {
		return false
	}
	for _, m := range s.TeamMembers {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// CanView reports whether userID may see the listing. Anonymous viewers pass
// an empty ID.
func (s Startup) CanView(userID string) bool {
	return s.IsPublic || s.IsMember(userID)
}

// HasTag reports whether tag is listed exactly.
func (s Startup) HasTag(tag string) bool {
	return containsID(s.Tags, tag)
}

// Normalize trims text fields and fills defaults for a new listing.
func (s *Startup) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Tagline = strings.TrimSpace(s.Tagline)
	if s.Status == "" {
		s.Status = StatusActive
	}
	if s.CoFounderIDs == nil {
		s.CoFounderIDs = []string{}
	}
	if s.TeamMembers == nil {
		s.TeamMembers = []TeamMember{}
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	if s.Investors == nil {
		s.Investors = []Investor{}
	}
	if s.Milestones == nil {
		s.Milestones = []Milestone{}
	}
}

// Validate checks the stored-listing constraints.
func (s Startup) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	} else if utf8.RuneCountInString(s.Name) > MaxNameLength {
		errs = append(errs, fmt.Errorf("name must be at most %d characters", MaxNameLength))
	}
	if s.Tagline == "" {
		errs = append(errs, errors.New("tagline is required"))
	} else if utf8.RuneCountInString(s.Tagline) > MaxTaglineLength {
		errs = append(errs, fmt.Errorf("tagline must be at most %d characters", MaxTaglineLength))
	}
	if s.Description == "" {
		errs = append(errs, errors.New("description is required"))
	} else if utf8.RuneCountInString(s.Description) > MaxDescriptionLength {
		errs = append(errs, fmt.Errorf("description must be at most %d characters", MaxDescriptionLength))
	}
	if s.Industry == "" {
		errs = append(errs, errors.New("industry is required"))
	}
	if !s.Stage.Valid() {
		errs = append(errs, fmt.Errorf("stage %q is invalid", s.Stage))
	}
	if s.Status != "" && !s.Status.Valid() {
		errs = append(errs, fmt.Errorf("status %q is invalid", s.Status))
	}
	if s.FounderID == "" {
		errs = append(errs, errors.New("founder is required"))
	}
	if s.FundingGoal != nil && *s.FundingGoal < 0 {
		errs = append(errs, errors.New("fundingGoal must be non-negative"))
	}
	if s.CurrentFunding < 0 {
		errs = append(errs, errors.New("currentFunding must be non-negative"))
	}
	for i, m := range s.TeamMembers {
		if m.UserID == "" || m.Role == "" {
			errs = append(errs, fmt.Errorf("teamMembers[%d] requires user and role", i))
		}
		if m.Equity != nil && (*m.Equity < 0 || *m.Equity > 100) {
			errs = append(errs, fmt.Errorf("teamMembers[%d] equity must be within 0-100", i))
		}
	}
	for i, inv := range s.Investors {
		if inv.UserID == "" || inv.Amount < 0 {
			errs = append(errs, fmt.Errorf("investors[%d] requires user and a non-negative amount", i))
		}
	}
	for i, m := range s.Milestones {
		if m.Title == "" {
			errs = append(errs, fmt.Errorf("milestones[%d] requires a title", i))
		}
	}
	if s.Metrics.Users != nil && *s.Metrics.Users < 0 {
		errs = append(errs, errors.New("metrics.users must be non-negative"))
	}
	if s.Metrics.Revenue != nil && *s.Metrics.Revenue < 0 {
		errs = append(errs, errors.New("metrics.revenue must be non-negative"))
	}
	if g := s.Metrics.Growth; g != nil && (*g < -100 || *g > 1000) {
		errs = append(errs, errors.New("metrics.growth must be within -100-1000"))
	}
	return errors.Join(errs...)
}

func containsID(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
