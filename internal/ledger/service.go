// Package ledger owns the parking aggregate: spots, active vehicles,
// transactions and tickets. Every mutation is atomic from the caller's
// point of view: state is rebuilt on a copy, persisted as a whole, and only
// then made visible.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estaciona/parkops-server/internal/models"
	"github.com/estaciona/parkops-server/internal/store"
)

// Lot layout seeded on first run: spots 1-15 are regular, 16-20 premium.
const (
	lotSize          = 20
	regularSpotCount = 15
	regularRate      = 5.0
	premiumRate      = 8.0
)

// MutationStatus distinguishes an applied mutation from the expected
// "cannot apply" outcome (unknown id, wrong state). Faults are errors, not
// statuses.
type MutationStatus string

const (
	StatusApplied MutationStatus = "applied"
	StatusNoOp    MutationStatus = "noop"
)

// Event types broadcast after applied mutations.
const (
	EventSpotOccupied    = "spot_occupied"
	EventSpotFreed       = "spot_freed"
	EventTransactionPaid = "transaction_paid"
)

// EventPublisher receives a typed message for every applied mutation.
type EventPublisher interface {
	BroadcastMessage(msgType string, data interface{})
}

// VehicleData is the check-in input for a vehicle.
type VehicleData struct {
	LicensePlate string
	Type         models.VehicleType
}

// OccupyResult reports the outcome of a check-in.
type OccupyResult struct {
	Status  MutationStatus
	Vehicle *models.Vehicle
	Ticket  *models.Ticket
}

// FreeResult reports the outcome of a check-out.
type FreeResult struct {
	Status      MutationStatus
	Transaction *models.Transaction
}

// PayResult reports the outcome of a payment.
type PayResult struct {
	Status      MutationStatus
	Transaction *models.Transaction
	Ticket      *models.Ticket
}

// Snapshot is an immutable copy of the ledger collections, the input of all
// analytics functions.
type Snapshot struct {
	Spots        []models.Spot
	Vehicles     []models.Vehicle
	Transactions []models.Transaction
	Tickets      []models.Ticket
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Spots:        append([]models.Spot(nil), s.Spots...),
		Vehicles:     append([]models.Vehicle(nil), s.Vehicles...),
		Transactions: append([]models.Transaction(nil), s.Transactions...),
		Tickets:      append([]models.Ticket(nil), s.Tickets...),
	}
}

func (s *Snapshot) spot(spotID int) *models.Spot {
	for i := range s.Spots {
		if s.Spots[i].ID == spotID {
			return &s.Spots[i]
		}
	}
	return nil
}

// Service implements the parking ledger. One mutex guards the whole
// aggregate.
type Service struct {
	mu     sync.Mutex
	store  store.Store
	logger *zap.Logger
	events EventPublisher
	spots  *spotMachines
	now    func() time.Time
	state  Snapshot
}

// NewService creates a ledger backed by st. Call Bootstrap before use.
func NewService(st store.Store, logger *zap.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger,
		spots:  newSpotMachines(),
		now:    time.Now,
	}
}

// SetEventPublisher wires the broadcast sink for applied mutations.
func (s *Service) SetEventPublisher(p EventPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = p
}

// Bootstrap loads the four collections, seeding the fixed lot on first run.
func (s *Service) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var spots []models.Spot
	ok, err := store.Load(ctx, s.store, store.KeySpots, &spots)
	if err != nil {
		return fmt.Errorf("error loading spots: %w", err)
	}
	if !ok {
		spots = seedSpots()
		if err := s.store.Set(ctx, store.KeySpots, spots); err != nil {
			return fmt.Errorf("error seeding spots: %w", err)
		}
		s.logger.Info("seeded parking lot", zap.Int("spots", len(spots)))
	}

	var vehicles []models.Vehicle
	if _, err := store.Load(ctx, s.store, store.KeyVehicles, &vehicles); err != nil {
		return fmt.Errorf("error loading vehicles: %w", err)
	}
	var transactions []models.Transaction
	if _, err := store.Load(ctx, s.store, store.KeyTransactions, &transactions); err != nil {
		return fmt.Errorf("error loading transactions: %w", err)
	}
	var tickets []models.Ticket
	if _, err := store.Load(ctx, s.store, store.KeyTickets, &tickets); err != nil {
		return fmt.Errorf("error loading tickets: %w", err)
	}

	s.state = Snapshot{
		Spots:        spots,
		Vehicles:     vehicles,
		Transactions: transactions,
		Tickets:      tickets,
	}

	for _, spot := range spots {
		s.spots.add(spot.ID, spot.Occupied)
	}

	return nil
}

func seedSpots() []models.Spot {
	spots := make([]models.Spot, lotSize)
	for i := range spots {
		spotType := models.SpotRegular
		rate := regularRate
		if i >= regularSpotCount {
			spotType = models.SpotPremium
			rate = premiumRate
		}
		spots[i] = models.Spot{
			ID:         i + 1,
			Number:     i + 1,
			Type:       spotType,
			HourlyRate: rate,
		}
	}
	return spots
}

// OccupySpot checks a vehicle into spotID on behalf of actor. An unknown or
// already occupied spot is a no-op, not an error. On success the vehicle is
// registered and an entry ticket issued in the same persisted write.
func (s *Service) OccupySpot(ctx context.Context, actor string, spotID int, data VehicleData) (OccupyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.spots.can(spotID, eventOccupy) {
		return OccupyResult{Status: StatusNoOp}, nil
	}

	next := s.state.clone()
	spot := next.spot(spotID)
	if spot == nil {
		return OccupyResult{Status: StatusNoOp}, nil
	}

	now := s.now()
	vehicle := models.Vehicle{
		ID:           uuid.New().String(),
		LicensePlate: data.LicensePlate,
		Type:         data.Type,
		EntryTime:    now,
		SpotID:       spotID,
		RegisteredBy: actor,
	}

	spot.Occupied = true
	spot.VehicleID = vehicle.ID
	next.Vehicles = append(next.Vehicles, vehicle)

	ticketID := newEntryTicketID(now)
	ticket := models.Ticket{
		ID:           ticketID,
		Type:         models.TicketEntry,
		LicensePlate: data.LicensePlate,
		VehicleType:  data.Type,
		SpotID:       spotID,
		SpotNumber:   spot.Number,
		EntryTime:    now,
		Status:       models.TicketActive,
		GeneratedBy:  actor,
		Barcode:      Barcode(ticketID),
	}
	// Most-recent-first ordering
	next.Tickets = append([]models.Ticket{ticket}, next.Tickets...)

	if err := s.persist(ctx, next); err != nil {
		return OccupyResult{}, err
	}
	s.state = next
	if err := s.spots.trigger(ctx, spotID, eventOccupy); err != nil {
		return OccupyResult{}, fmt.Errorf("error transitioning spot %d: %w", spotID, err)
	}

	s.publish(EventSpotOccupied, models.OccupySpotResponse{
		Status:  string(StatusApplied),
		Vehicle: &vehicle,
		Ticket:  &ticket,
	})

	return OccupyResult{Status: StatusApplied, Vehicle: &vehicle, Ticket: &ticket}, nil
}

// FreeSpot checks the vehicle out of spotID, billing elapsed time rounded up
// to whole hours with a one hour minimum. An unknown or unoccupied spot is a
// no-op. No ticket is issued here; exit ticketing happens at payment.
func (s *Service) FreeSpot(ctx context.Context, actor string, spotID int) (FreeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.spots.can(spotID, eventFree) {
		return FreeResult{Status: StatusNoOp}, nil
	}

	next := s.state.clone()
	spot := next.spot(spotID)
	if spot == nil || !spot.Occupied {
		return FreeResult{Status: StatusNoOp}, nil
	}

	var vehicle *models.Vehicle
	for i := range next.Vehicles {
		if next.Vehicles[i].ID == spot.VehicleID {
			vehicle = &next.Vehicles[i]
			break
		}
	}

	var tx *models.Transaction
	now := s.now()
	if vehicle != nil {
		hours := billableHours(vehicle.EntryTime, now)
		transaction := models.Transaction{
			ID:           uuid.New().String(),
			VehicleID:    vehicle.ID,
			LicensePlate: vehicle.LicensePlate,
			VehicleType:  vehicle.Type,
			SpotID:       spotID,
			EntryTime:    vehicle.EntryTime,
			ExitTime:     now,
			Hours:        hours,
			Amount:       float64(hours) * spot.HourlyRate,
			Paid:         false,
			ProcessedBy:  actor,
		}
		next.Transactions = append(next.Transactions, transaction)
		tx = &next.Transactions[len(next.Transactions)-1]

		kept := make([]models.Vehicle, 0, len(next.Vehicles)-1)
		for _, v := range next.Vehicles {
			if v.ID != vehicle.ID {
				kept = append(kept, v)
			}
		}
		next.Vehicles = kept
	}

	spot.Occupied = false
	spot.VehicleID = ""

	if err := s.persist(ctx, next); err != nil {
		return FreeResult{}, err
	}
	s.state = next
	if err := s.spots.trigger(ctx, spotID, eventFree); err != nil {
		return FreeResult{}, fmt.Errorf("error transitioning spot %d: %w", spotID, err)
	}

	var txCopy *models.Transaction
	if tx != nil {
		cp := *tx
		txCopy = &cp
	}

	s.publish(EventSpotFreed, models.FreeSpotResponse{
		Status:      string(StatusApplied),
		Transaction: txCopy,
	})

	return FreeResult{Status: StatusApplied, Transaction: txCopy}, nil
}

// MarkAsPaid settles a transaction on behalf of actor: the payment fields
// are set exactly once, an exit ticket is issued and the matching active
// entry ticket for the same plate is completed. An unknown or already paid
// transaction is a no-op.
func (s *Service) MarkAsPaid(ctx context.Context, actor string, transactionID string) (PayResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()

	var tx *models.Transaction
	for i := range next.Transactions {
		if next.Transactions[i].ID == transactionID {
			tx = &next.Transactions[i]
			break
		}
	}
	if tx == nil || tx.Paid {
		return PayResult{Status: StatusNoOp}, nil
	}

	now := s.now()
	paidAt := now
	tx.Paid = true
	tx.PaidAt = &paidAt
	tx.PaidBy = actor

	spotNumber := 0
	if spot := next.spot(tx.SpotID); spot != nil {
		spotNumber = spot.Number
	}

	exitID := newExitTicketID(now)
	exitTime := tx.ExitTime
	exitTicket := models.Ticket{
		ID:            exitID,
		Type:          models.TicketExit,
		LicensePlate:  tx.LicensePlate,
		VehicleType:   tx.VehicleType,
		SpotID:        tx.SpotID,
		SpotNumber:    spotNumber,
		EntryTime:     tx.EntryTime,
		ExitTime:      &exitTime,
		Hours:         tx.Hours,
		Amount:        tx.Amount,
		Status:        models.TicketCompleted,
		GeneratedBy:   actor,
		Barcode:       Barcode(exitID),
		TransactionID: tx.ID,
	}

	// Complete the most recent active entry ticket for the plate. A missing
	// match still issues the exit ticket. Matching is by plate only; two
	// simultaneous stays under one plate would be ambiguous, so the extras
	// are logged and left untouched.
	matches := 0
	for i := range next.Tickets {
		t := &next.Tickets[i]
		if t.Type != models.TicketEntry || t.Status != models.TicketActive || t.LicensePlate != tx.LicensePlate {
			continue
		}
		matches++
		if matches == 1 {
			t.Status = models.TicketCompleted
			t.ExitTime = &exitTime
		}
	}
	if matches > 1 {
		s.logger.Warn("ambiguous entry ticket match",
			zap.String("licensePlate", tx.LicensePlate),
			zap.Int("activeEntryTickets", matches))
	}

	next.Tickets = append([]models.Ticket{exitTicket}, next.Tickets...)

	if err := s.persist(ctx, next); err != nil {
		return PayResult{}, err
	}
	s.state = next

	txCopy := *tx
	s.publish(EventTransactionPaid, models.PayTransactionResponse{
		Status:      string(StatusApplied),
		Transaction: &txCopy,
		Ticket:      &exitTicket,
	})

	return PayResult{Status: StatusApplied, Transaction: &txCopy, Ticket: &exitTicket}, nil
}

// billableHours rounds elapsed time up to whole hours with a one hour
// minimum.
func billableHours(entry, exit time.Time) int {
	hours := int(math.Ceil(exit.Sub(entry).Hours()))
	if hours < 1 {
		hours = 1
	}
	return hours
}

// persist writes all four collections. The in-memory state is only swapped
// by the caller after every write succeeded, so a fault here leaves the
// previous state visible.
func (s *Service) persist(ctx context.Context, next Snapshot) error {
	if err := s.store.Set(ctx, store.KeySpots, next.Spots); err != nil {
		return fmt.Errorf("error saving spots: %w", err)
	}
	if err := s.store.Set(ctx, store.KeyVehicles, next.Vehicles); err != nil {
		return fmt.Errorf("error saving vehicles: %w", err)
	}
	if err := s.store.Set(ctx, store.KeyTransactions, next.Transactions); err != nil {
		return fmt.Errorf("error saving transactions: %w", err)
	}
	if err := s.store.Set(ctx, store.KeyTickets, next.Tickets); err != nil {
		return fmt.Errorf("error saving tickets: %w", err)
	}
	return nil
}

func (s *Service) publish(msgType string, data interface{}) {
	if s.events != nil {
		s.events.BroadcastMessage(msgType, data)
	}
}

// Snapshot returns an immutable copy of the ledger collections.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Spots returns all spots.
func (s *Service) Spots() []models.Spot {
	return s.Snapshot().Spots
}

// Vehicles returns the active vehicles.
func (s *Service) Vehicles() []models.Vehicle {
	return s.Snapshot().Vehicles
}

// Transactions returns the append-only transaction ledger.
func (s *Service) Transactions() []models.Transaction {
	return s.Snapshot().Transactions
}

// Tickets returns all tickets, most recent first.
func (s *Service) Tickets() []models.Ticket {
	return s.Snapshot().Tickets
}

// TicketByID returns the ticket with the given id, or nil.
func (s *Service) TicketByID(id string) *models.Ticket {
	for _, t := range s.Snapshot().Tickets {
		if t.ID == id {
			cp := t
			return &cp
		}
	}
	return nil
}

// ActiveTickets returns tickets still awaiting payment.
func (s *Service) ActiveTickets() []models.Ticket {
	return filterTickets(s.Snapshot().Tickets, models.TicketActive)
}

// CompletedTickets returns settled tickets.
func (s *Service) CompletedTickets() []models.Ticket {
	return filterTickets(s.Snapshot().Tickets, models.TicketCompleted)
}

func filterTickets(tickets []models.Ticket, status models.TicketStatus) []models.Ticket {
	out := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}
