package ledger

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const ticketSuffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newEntryTicketID builds a human-readable entry ticket id: a type marker,
// the issue time in milliseconds and a short random suffix, uppercased.
func newEntryTicketID(now time.Time) string {
	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = ticketSuffixAlphabet[rand.Intn(len(ticketSuffixAlphabet))]
	}
	return strings.ToUpper(fmt.Sprintf("TKT-%d-%s", now.UnixMilli(), suffix))
}

// newExitTicketID builds an exit ticket id from the payment time.
func newExitTicketID(now time.Time) string {
	return fmt.Sprintf("TKT-EXIT-%d", now.UnixMilli())
}

// Barcode renders the cosmetic barcode for a ticket id: every separator
// becomes a space and every other character a full block. Reproducible from
// the id alone.
func Barcode(ticketID string) string {
	var b strings.Builder
	for _, r := range ticketID {
		if r == '-' {
			b.WriteRune(' ')
		} else {
			b.WriteRune('█')
		}
	}
	return b.String()
}
