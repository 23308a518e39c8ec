package user

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// Tier is a subscription level.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

const (
	MinUsernameLength  = 3
	MaxUsernameLength  = 30
	MaxBioLength       = 500
	MaxReputationScore = 1000
)

// Experience is one position in a member's work history.
type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Duration    string `json:"duration"`
	Description string `json:"description,omitempty"`
}

// Education is one degree in a member's history.
type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
}

// InvestmentRange bounds the ticket size an investor considers.
type InvestmentRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// InvestorProfile is populated for members that invest.
type InvestorProfile struct {
	AccreditedInvestor bool            `json:"accreditedInvestor"`
	InvestmentRange    InvestmentRange `json:"investmentRange"`
	FocusAreas         []string        `json:"focusAreas"`
	PortfolioCompanies []string        `json:"portfolioCompanies"`
}

// Profile is a NovaStack member.
type Profile struct {
	ID               string           `json:"id"`
	Email            string           `json:"email,omitempty"`
	FirstName        string           `json:"firstName"`
	LastName         string           `json:"lastName"`
	Username         string           `json:"username"`
	Avatar           string           `json:"avatar,omitempty"`
	Bio              string           `json:"bio,omitempty"`
	Location         string           `json:"location,omitempty"`
	Website          string           `json:"website,omitempty"`
	LinkedIn         string           `json:"linkedIn,omitempty"`
	Twitter          string           `json:"twitter,omitempty"`
	GitHub           string           `json:"github,omitempty"`
	Skills           []string         `json:"skills"`
	Interests        []string         `json:"interests"`
	Experience       []Experience     `json:"experience"`
	Education        []Education      `json:"education"`
	ReputationScore  int              `json:"reputationScore"`
	IsVerified       bool             `json:"isVerified"`
	IsInvestor       bool             `json:"isInvestor"`
	InvestorProfile  *InvestorProfile `json:"investorProfile,omitempty"`
	SubscriptionTier Tier             `json:"subscriptionTier"`
	MoneroAddress    string           `json:"moneroAddress,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	LastActive       time.Time        `json:"lastActive"`
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Normalize trims and lower-cases the fields the schema stores that way and
// fills defaults.
func (p *Profile) Normalize() {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Username = strings.ToLower(strings.TrimSpace(p.Username))
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.SubscriptionTier == "" {
		p.SubscriptionTier = TierFree
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.Experience == nil {
		p.Experience = []Experience{}
	}
	if p.Education == nil {
		p.Education = []Education{}
	}
}

// Validate checks the stored-profile constraints.
func (p Profile) Validate() error {
	var errs []error
	if p.Email == "" {
		errs = append(errs, errors.New("email is required"))
	} else if _, err := mail.ParseAddress(p.Email); err != nil {
		errs = append(errs, fmt.Errorf("email %q is invalid", p.Email))
	}
	if p.FirstName == "" {
		errs = append(errs, errors.New("firstName is required"))
	}
	if p.LastName == "" {
		errs = append(errs, errors.New("lastName is required"))
	}
	if n := utf8.RuneCountInString(p.Username); n < MinUsernameLength || n > MaxUsernameLength {
		errs = append(errs, fmt.Errorf("username must be %d-%d characters", MinUsernameLength, MaxUsernameLength))
	}
	if utf8.RuneCountInString(p.Bio) > MaxBioLength {
		errs = append(errs, fmt.Errorf("bio must be at most %d characters", MaxBioLength))
	}
	if p.ReputationScore < 0 || p.ReputationScore > MaxReputationScore {
		errs = append(errs, fmt.Errorf("reputationScore must be within 0-%d", MaxReputationScore))
	}
	if p.SubscriptionTier != "" && !p.SubscriptionTier.Valid() {
		errs = append(errs, fmt.Errorf("subscriptionTier %q is invalid", p.SubscriptionTier))
	}
	for i, e := range p.Experience {
		if e.Title == "" || e.Company == "" || e.Duration == "" {
			errs = append(errs, fmt.Errorf("experience[%d] requires title, company and duration", i))
		}
	}
	for i, e := range p.Education {
		if e.Degree == "" || e.Institution == "" || e.Year == "" {
			errs = append(errs, fmt.Errorf("education[%d] requires degree, institution and year", i))
		}
	}
	return errors.Join(errs...)
}

// Public returns a copy safe to show to other members.
func (p Profile) Public() Profile {
	p.Email = ""
	return p
}

// HasSkill reports whether skill is listed exactly.
func (p Profile) HasSkill(skill string) bool {
	return contains(p.Skills, skill)
}

// HasInterest reports whether interest is listed exactly.
func (p Profile) HasInterest(interest string) bool {
	return contains(p.Interests, interest)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
