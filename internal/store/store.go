package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection keys. Each key holds one JSON document containing the whole
// collection; writes replace the document atomically.
const (
	KeySpots        = "parking_spots"
	KeyVehicles     = "parking_vehicles"
	KeyTransactions = "parking_transactions"
	KeyTickets      = "parking_tickets"
	KeyUsers        = "parking_users"
	KeySessions     = "parking_sessions"
)

// Store is the persistence substrate: a synchronous key-value store of JSON
// documents. Get reports absence through the second return value; Set never
// partially applies a write.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, doc any) error
}

// Load reads the document at key into out. It returns false without touching
// out when the key is absent.
func Load(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("error loading %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("error decoding %q: %w", key, err)
	}
	return true, nil
}
