package shared

// FlashType is the kind of a flash message.
type FlashType string

const (
	FlashSuccess FlashType = "success"
	FlashError   FlashType = "error"
	FlashInfo    FlashType = "info"
)

// Flash is a one-off message shown at the top of a page.
type Flash struct {
	Type    FlashType
	Message string
}

var flashClasses = map[FlashType]string{
	FlashSuccess: "border-emerald-200 bg-emerald-50 text-emerald-800",
	FlashError:   "border-red-200 bg-red-50 text-red-800",
	FlashInfo:    "border-sky-200 bg-sky-50 text-sky-800",
}

// Class returns the Tailwind classes for the flash box.
func (f Flash) Class() string {
	return Cx("rounded-lg border px-4 py-3 text-sm", flashClasses[f.Type])
}
