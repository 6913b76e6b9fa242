package domain

import "fmt"

// Dialog is a modal prompt shown instead of starting a survey.
type Dialog struct {
	Kind        string   `json:"kind"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	Details     []string `json:"details,omitempty"`
	Benefits    []string `json:"benefits,omitempty"`
	ConfirmText string   `json:"confirmText"`
	CancelText  string   `json:"cancelText,omitempty"`
	ConfirmURL  string   `json:"confirmUrl,omitempty"`
}

// Dialog kinds.
const (
	DialogAlreadyCompleted = "already_completed"
	DialogDailyLimit       = "daily_limit"
	DialogPremiumUpsell    = "premium_upsell"
)

// PackagesPath is where upgrade prompts lead.
const PackagesPath = "/packages"

// AlreadyCompletedDialog explains that a finished survey cannot be retaken.
func AlreadyCompletedDialog(message string) *Dialog {
	if message == "" {
		message = "This survey is already completed and cannot be taken again."
	}
	return &Dialog{
		Kind:        DialogAlreadyCompleted,
		Title:       "Survey Already Completed",
		Message:     message,
		ConfirmText: "OK",
	}
}

// DailyLimitDialog offers the next tier once today's quota is used up.
// The highest tier gets a "come back tomorrow" note instead.
func DailyLimitDialog(tier Tier) *Dialog {
	pkg := GetTierPackage(tier)
	d := &Dialog{
		Kind:  DialogDailyLimit,
		Title: pkg.UpgradeTitle(),
		Message: fmt.Sprintf("You've completed all %d surveys available for your %s plan today.",
			DailyLimit(tier), tier),
	}
	if pkg.NextTier == "" {
		d.Details = []string{"You already have our highest plan!", "Check back tomorrow for more surveys"}
		d.ConfirmText = "OK"
		return d
	}
	d.Details = []string{fmt.Sprintf("Upgrade to %s for:", TierTitle(pkg.NextTier))}
	d.Benefits = pkg.Benefits
	d.ConfirmText = "Upgrade Now →"
	d.CancelText = "Stay on Current Plan"
	d.ConfirmURL = PackagesPath
	return d
}

// PremiumUpsellDialog is the paywall for premium surveys.
func PremiumUpsellDialog() *Dialog {
	return &Dialog{
		Kind:        DialogPremiumUpsell,
		Title:       "Premium Survey",
		Message:     "This is a premium survey. Upgrade to access it and enjoy:",
		Benefits:    []string{"Higher payouts", "More survey opportunities", "Exclusive content"},
		ConfirmText: "Upgrade",
		CancelText:  "Maybe later",
		ConfirmURL:  PackagesPath,
	}
}

// EmptyCatalogMessage is shown when the survey list is empty.
func EmptyCatalogMessage(remaining int, tier Tier) string {
	if remaining > 0 {
		return "No surveys available at this time. Check back later!"
	}
	return fmt.Sprintf("You've completed all %d surveys available for your %s plan today", DailyLimit(tier), tier)
}

// RemainingBadge is the short quota status shown above the survey list.
func RemainingBadge(remaining int, tier Tier) string {
	if remaining > 0 {
		return fmt.Sprintf("%d of %d left today", remaining, DailyLimit(tier))
	}
	if next := GetTierPackage(tier).NextTier; next != "" {
		return "Upgrade to " + TierTitle(next)
	}
	return "Maximum plan reached"
}
