// Package domain contains core business types and interfaces.
//
// This file defines the daily survey quota attached to each subscription tier.
package domain

import (
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DayLayout is the format of the daily completion counter keys.
const DayLayout = "2006-01-02"

// TierPackage describes what a tier offers and where an upgrade leads.
type TierPackage struct {
	Tier     Tier
	Limit    int    // surveys per calendar day
	NextTier Tier   // empty for the highest tier
	Benefits []string
}

// TierPackages maps tiers to their daily quota and upgrade path.
var TierPackages = map[Tier]TierPackage{
	TierFree: {
		Tier:     TierFree,
		Limit:    1,
		NextTier: TierSilver,
		Benefits: []string{"5 surveys/day", "Higher earnings", "Lower withdrawal limits"},
	},
	TierSilver: {
		Tier:     TierSilver,
		Limit:    5,
		NextTier: TierGold,
		Benefits: []string{"10 surveys/day", "Even higher earnings", "Priority surveys"},
	},
	TierGold: {
		Tier:     TierGold,
		Limit:    10,
		NextTier: TierPlatinum,
		Benefits: []string{"20 surveys/day", "Maximum earnings", "All premium surveys"},
	},
	TierPlatinum: {
		Tier:     TierPlatinum,
		Limit:    20,
		Benefits: []string{"Maximum benefits", "All features unlocked"},
	},
}

// DailyLimit returns the number of surveys a tier may complete per day.
// Unknown or empty tiers get no surveys at all.
func DailyLimit(tier Tier) int {
	if pkg, ok := TierPackages[tier]; ok {
		return pkg.Limit
	}
	return 0
}

// GetTierPackage returns the package for a tier, defaulting to the free
// package for unknown tiers so pages always have something to show.
func GetTierPackage(tier Tier) TierPackage {
	if pkg, ok := TierPackages[tier]; ok {
		return pkg
	}
	return TierPackages[TierFree]
}

// Remaining returns how many surveys are left out of limit after used.
func Remaining(limit, used int) int {
	if left := limit - used; left > 0 {
		return left
	}
	return 0
}

// DayKey formats t as a daily counter key in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// TierTitle returns the display name of a tier ("silver" -> "Silver").
func TierTitle(tier Tier) string {
	return cases.Title(language.English).String(string(tier))
}

// UpgradeTitle returns the heading of the daily-limit dialog.
func (p TierPackage) UpgradeTitle() string {
	if p.NextTier == "" {
		return "Upgrade to Premium"
	}
	return "Upgrade to " + TierTitle(p.NextTier)
}

// QuotaUsage is today's usage against the tier limit.
type QuotaUsage struct {
	Tier      Tier
	Used      int
	Limit     int
	Remaining int
}
