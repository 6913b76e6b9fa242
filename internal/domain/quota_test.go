package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyLimit(t *testing.T) {
	tests := []struct {
		name string
		tier Tier
		want int
	}{
		{name: "free", tier: TierFree, want: 1},
		{name: "silver", tier: TierSilver, want: 5},
		{name: "gold", tier: TierGold, want: 10},
		{name: "platinum", tier: TierPlatinum, want: 20},
		{name: "unknown tier gets nothing", tier: Tier("diamond"), want: 0},
		{name: "empty tier gets nothing", tier: Tier(""), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DailyLimit(tt.tier))
		})
	}
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 2, Remaining(5, 3))
	assert.Equal(t, 0, Remaining(5, 5))
	assert.Equal(t, 0, Remaining(5, 9))
	assert.Equal(t, 0, Remaining(0, 0))
}

func TestGetTierPackage_UpgradePath(t *testing.T) {
	assert.Equal(t, TierSilver, GetTierPackage(TierFree).NextTier)
	assert.Equal(t, TierGold, GetTierPackage(TierSilver).NextTier)
	assert.Equal(t, TierPlatinum, GetTierPackage(TierGold).NextTier)
	assert.Empty(t, GetTierPackage(TierPlatinum).NextTier)

	// unknown tiers fall back to the free package for display
	assert.Equal(t, TierFree, GetTierPackage(Tier("bogus")).Tier)
}

func TestTierPackage_UpgradeTitle(t *testing.T) {
	assert.Equal(t, "Upgrade to Silver", GetTierPackage(TierFree).UpgradeTitle())
	assert.Equal(t, "Upgrade to Platinum", GetTierPackage(TierGold).UpgradeTitle())
	assert.Equal(t, "Upgrade to Premium", GetTierPackage(TierPlatinum).UpgradeTitle())
}

func TestDayKey(t *testing.T) {
	ts := time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-10-19", DayKey(ts, nil))
	assert.Equal(t, "2026-10-19", DayKey(ts, time.UTC))

	nairobi := time.FixedZone("EAT", 3*60*60)
	assert.Equal(t, "2026-10-20", DayKey(ts, nairobi))
}

func TestQuotaExceeded_MessageCarriesLimit(t *testing.T) {
	err := QuotaExceeded("quota.ensure_not_completed", 5)

	assert.Equal(t, EQUOTA, ErrorCode(err))
	assert.Equal(t, "You have reached your daily limit of 5 surveys.", ErrorMessage(err))
	assert.True(t, IsQuotaExceeded(err))
	assert.False(t, IsAlreadyCompleted(err))
}

func TestAlreadyCompleted_MessageCarriesLimit(t *testing.T) {
	err := AlreadyCompleted("quota.ensure_not_completed", "s-1", 10)

	assert.True(t, IsAlreadyCompleted(err))
	assert.Contains(t, ErrorMessage(err), "10 surveys")
	assert.Contains(t, ErrorMessage(err), `"s-1"`)
}
