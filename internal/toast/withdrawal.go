package toast

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Withdrawal is one fabricated payout notice. The numbers are random and
// do not describe real transactions.
type Withdrawal struct {
	MSISDN  string    `json:"msisdn"`
	Amount  int       `json:"amount"`
	Balance int       `json:"balance"`
	Ref     string    `json:"ref"`
	At      time.Time `json:"at"`
	Text    string    `json:"text"`
}

var (
	msisdnPrefixes = []string{"XX", "YY", "ZZ"}
	fixedAmounts   = []int{2500, 2500, 1000, 3000}
)

const (
	refLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	refDigits  = "0123456789"
)

var kesPrinter = message.NewPrinter(language.MustParse("en-KE"))

// FormatKES renders amount as Kenyan shillings without fraction digits,
// e.g. "Ksh 2,500".
func FormatKES(amount int) string {
	return kesPrinter.Sprintf("Ksh %v", number.Decimal(amount, number.MaxFractionDigits(0)))
}

// randInt returns an int in [min, max].
func randInt(r *rand.Rand, min, max int) int {
	return min + r.IntN(max-min+1)
}

// NewWithdrawal draws a random withdrawal from r.
func NewWithdrawal(r *rand.Rand, at time.Time) Withdrawal {
	w := Withdrawal{
		MSISDN:  maskedMSISDN(r),
		Amount:  amount(r),
		Balance: randInt(r, 0, 100),
		Ref:     reference(r),
		At:      at,
	}
	w.Text = fmt.Sprintf("%s has withdrawn %s. New balance: %s. Ref. %s",
		w.MSISDN, FormatKES(w.Amount), FormatKES(w.Balance), w.Ref)
	return w
}

func maskedMSISDN(r *rand.Rand) string {
	last := randInt(r, 0, 999)
	prefix := msisdnPrefixes[r.IntN(len(msisdnPrefixes))]
	return fmt.Sprintf("2547%s****%03d", prefix, last)
}

// amount favours the fixed values; base fills the remaining two slots.
func amount(r *rand.Rand) int {
	base := randInt(r, 10, 100) * 50
	choices := append(append([]int{}, fixedAmounts...), base, base)
	return choices[r.IntN(len(choices))]
}

func reference(r *rand.Rand) string {
	var b strings.Builder
	b.WriteString("TX")
	for i := 0; i < 4; i++ {
		b.WriteByte(refDigits[r.IntN(len(refDigits))])
	}
	for i := 0; i < 2; i++ {
		b.WriteByte(refLetters[r.IntN(len(refLetters))])
	}
	return b.String()
}
