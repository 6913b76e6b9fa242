// Package domain contains core business types and interfaces.
//
// This file defines the User profile stored per storage origin, and the
// subscription tiers that drive the daily survey quota.
package domain

// Tier represents the subscription level of a user.
type Tier string

const (
	TierFree     Tier = "free"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Tiers lists the known tiers from lowest to highest.
var Tiers = []Tier{TierFree, TierSilver, TierGold, TierPlatinum}

// ParseTier returns the known tier matching s.
func ParseTier(s string) (Tier, bool) {
	for _, t := range Tiers {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Plan labels. The plan is a free-form label kept next to the tier;
// only "premium" carries meaning.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// User is the single profile record kept per storage origin.
//
// JSON field names match the stored document so existing records stay
// readable across versions.
type User struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Plan      string  `json:"plan"`
	Tier      Tier    `json:"tier"`
	Balance   float64 `json:"balance"`
	CreatedAt int64   `json:"createdAt"` // unix milliseconds
}

// IsPremium reports whether the user may start premium surveys.
// Any paid tier counts, as does an explicit premium plan label.
func (u *User) IsPremium() bool {
	if u.Plan == PlanPremium {
		return true
	}
	switch u.Tier {
	case TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// UserPatch is a partial update applied by shallow overwrite.
// Nil fields are left untouched. The ID cannot be patched.
type UserPatch struct {
	Name    *string  `json:"name,omitempty"`
	Email   *string  `json:"email,omitempty"`
	Plan    *string  `json:"plan,omitempty"`
	Tier    *Tier    `json:"tier,omitempty"`
	Balance *float64 `json:"balance,omitempty"`
}

// Apply returns u with the patch merged onto it.
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Plan != nil {
		u.Plan = *p.Plan
	}
	if p.Tier != nil {
		u.Tier = *p.Tier
	}
	if p.Balance != nil {
		u.Balance = *p.Balance
	}
	return u
}
