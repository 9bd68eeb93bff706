package ledger

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEntryTicketID(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	re := regexp.MustCompile(`^TKT-\d+-[0-9A-Z]{5}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := newEntryTicketID(now)
		assert.Regexp(t, re, id)
		assert.Contains(t, id, fmt.Sprintf("-%d-", now.UnixMilli()))
		seen[id] = true
	}
	// Random suffixes keep ids issued in the same millisecond apart
	assert.Greater(t, len(seen), 1)
}

func TestNewExitTicketID(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, fmt.Sprintf("TKT-EXIT-%d", now.UnixMilli()), newExitTicketID(now))
}

func TestBarcode(t *testing.T) {
	assert.Equal(t, "███ ████ █████", Barcode("TKT-EXIT-12345"))
	assert.Equal(t, "", Barcode(""))

	// Same id, same barcode
	id := newEntryTicketID(time.Now())
	assert.Equal(t, Barcode(id), Barcode(id))
}
