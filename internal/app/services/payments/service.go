// Package payments publishes the subscription pricing catalogue.
package payments

import (
	"github.com/shopspring/decimal"

	"github.com/novastack/service_layer/internal/app/domain/user"
)

// Plan is a subscription tier offering.
type Plan struct {
	ID       user.Tier       `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Interval string          `json:"interval"`
	Features []string        `json:"features"`
}

var plans = []Plan{
	{
		ID:       user.TierFree,
		Name:     "Free",
		Price:    decimal.Zero,
		Currency: "usd",
		Interval: "month",
		Features: []string{
			"Create up to 3 startups",
			"Basic collaboration tools",
			"Community access",
			"Basic analytics",
		},
	},
	{
		ID:       user.TierPro,
		Name:     "Pro",
		Price:    decimal.NewFromInt(29),
		Currency: "usd",
		Interval: "month",
		Features: []string{
			"Unlimited startups",
			"Advanced collaboration tools",
			"AI-powered insights",
			"Priority support",
			"Advanced analytics",
			"Investor matching",
		},
	},
	{
		ID:       user.TierEnterprise,
		Name:     "Enterprise",
		Price:    decimal.NewFromInt(99),
		Currency: "usd",
		Interval: "month",
		Features: []string{
			"Everything in Pro",
			"White-label solution",
			"Custom integrations",
			"Dedicated support",
			"Advanced security",
			"Custom analytics",
		},
	},
}

// Plans returns a copy of the catalogue, cheapest first.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	for i, p := range plans {
		p.Features = append([]string(nil), p.Features...)
		out[i] = p
	}
	return out
}

// Lookup returns the plan for tier.
func Lookup(tier user.Tier) (Plan, bool) {
	for _, p := range Plans() {
		if p.ID == tier {
			return p, true
		}
	}
	return Plan{}, false
}
