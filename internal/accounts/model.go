package accounts

import (
	"strings"
	"time"
)

// Subscription plans. Metered plans carry a monthly ceiling; enterprise is unlimited.
const (
	PlanFree       = "free"
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"

	// Unlimited is the ceiling sentinel that disables quota checks.
	Unlimited = -1
)

var planLimits = map[string]int{
	PlanFree:       10,
	PlanStarter:    50,
	PlanPro:        500,
	PlanEnterprise: Unlimited,
}

// Monthly price in whole rupees for each purchasable plan.
var planPrices = map[string]int64{
	PlanStarter:    299,
	PlanPro:        899,
	PlanEnterprise: 2499,
}

// Account is the owner of every persisted entity and carries the usage counter.
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Image         string    `json:"image"`
	IsAdmin       bool      `json:"isAdmin"`
	Subscription  string    `json:"subscription"`
	UsageCount    int       `json:"usageCount"`
	UsageLimit    int       `json:"usageLimit"`
	LastResetDate time.Time `json:"lastResetDate"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// LimitFor returns the ceiling for plan and whether the plan is known.
func LimitFor(plan string) (int, bool) {
	limit, ok := planLimits[strings.ToLower(strings.TrimSpace(plan))]
	return limit, ok
}

// PriceFor returns the rupee price of plan. Only paid plans have one.
func PriceFor(plan string) (int64, bool) {
	price, ok := planPrices[strings.ToLower(strings.TrimSpace(plan))]
	return price, ok
}

// IsMetered reports whether quota applies to plan.
func IsMetered(plan string) bool {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case PlanFree, PlanStarter, PlanPro:
		return true
	default:
		return false
	}
}

// Unmetered reports whether the account bypasses quota entirely.
func (a Account) Unmetered() bool {
	return a.UsageLimit == Unlimited || !IsMetered(a.Subscription)
}

// Remaining returns the units left in the current window, or Unlimited.
func (a Account) Remaining() int {
	if a.Unmetered() {
		return Unlimited
	}
	if left := a.UsageLimit - a.UsageCount; left > 0 {
		return left
	}
	return 0
}
