package shared

import (
	twmerge "github.com/Oudwins/tailwind-merge-go"
)

// Cx merges Tailwind class lists; later classes win over conflicting
// earlier ones.
func Cx(classes ...string) string {
	return twmerge.Merge(classes...)
}

// ButtonVariant selects a button style.
type ButtonVariant string

const (
	ButtonPrimary   ButtonVariant = "primary"
	ButtonSecondary ButtonVariant = "secondary"
	ButtonDisabled  ButtonVariant = "disabled"
)

const buttonBase = "inline-flex items-center justify-center rounded-lg px-4 py-2 text-sm font-semibold"

var buttonVariants = map[ButtonVariant]string{
	ButtonPrimary:   "bg-emerald-600 text-white hover:bg-emerald-700",
	ButtonSecondary: "bg-white text-slate-700 border border-slate-300 hover:bg-slate-50",
	ButtonDisabled:  "bg-slate-200 text-slate-500 cursor-not-allowed",
}

// ButtonClass returns the classes for a button of variant, with extra
// overriding the defaults.
func ButtonClass(variant ButtonVariant, extra ...string) string {
	return Cx(append([]string{buttonBase, buttonVariants[variant]}, extra...)...)
}
