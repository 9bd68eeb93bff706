package models

import (
	"time"
)

// SpotType classifies a parking spot and determines its hourly rate tier.
type SpotType string

const (
	SpotRegular SpotType = "regular"
	SpotPremium SpotType = "premium"
)

// VehicleType is the kind of vehicle occupying a spot.
type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleTruck      VehicleType = "truck"
)

// TicketType distinguishes the paired entry/exit tickets of one stay.
type TicketType string

const (
	TicketEntry TicketType = "entry"
	TicketExit  TicketType = "exit"
)

// TicketStatus tracks the ticket lifecycle. Entry tickets start active and
// are completed when the matching stay is paid; exit tickets are created
// already completed.
type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketCompleted TicketStatus = "completed"
)

// Role is a user's access level.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// RoleSatisfies reports whether actual grants the access level of required.
// Admin satisfies every requirement.
func RoleSatisfies(required, actual Role) bool {
	if actual == RoleAdmin {
		return true
	}
	return required == actual
}

// Spot represents a single parking slot in the lot
type Spot struct {
	ID         int      `json:"id"`
	Number     int      `json:"number"`
	Occupied   bool     `json:"occupied"`
	VehicleID  string   `json:"vehicleId,omitempty"`
	Type       SpotType `json:"type"`
	HourlyRate float64  `json:"hourlyRate"`
}

// Vehicle represents a vehicle currently parked in the lot. It exists only
// while the stay is active; check-out folds it into a Transaction.
type Vehicle struct {
	ID           string      `json:"id"`
	LicensePlate string      `json:"licensePlate"`
	Type         VehicleType `json:"type"`
	EntryTime    time.Time   `json:"entryTime"`
	SpotID       int         `json:"spotId"`
	RegisteredBy string      `json:"registeredBy"`
}

// Transaction is the immutable billing record created at check-out. Only the
// payment fields are set afterwards, exactly once.
type Transaction struct {
	ID           string      `json:"id"`
	VehicleID    string      `json:"vehicleId"`
	LicensePlate string      `json:"licensePlate"`
	VehicleType  VehicleType `json:"vehicleType"`
	SpotID       int         `json:"spotId"`
	EntryTime    time.Time   `json:"entryTime"`
	ExitTime     time.Time   `json:"exitTime"`
	Hours        int         `json:"hours"`
	Amount       float64     `json:"amount"`
	Paid         bool        `json:"paid"`
	ProcessedBy  string      `json:"processedBy"`
	PaidAt       *time.Time  `json:"paidAt,omitempty"`
	PaidBy       string      `json:"paidBy,omitempty"`
}

// Ticket is the printable record handed out at entry and payment time.
type Ticket struct {
	ID            string       `json:"id"`
	Type          TicketType   `json:"type"`
	LicensePlate  string       `json:"licensePlate"`
	VehicleType   VehicleType  `json:"vehicleType"`
	SpotID        int          `json:"spotId"`
	SpotNumber    int          `json:"spotNumber"`
	EntryTime     time.Time    `json:"entryTime"`
	ExitTime      *time.Time   `json:"exitTime,omitempty"`
	Hours         int          `json:"hours,omitempty"`
	Amount        float64      `json:"amount"`
	Status        TicketStatus `json:"status"`
	GeneratedBy   string       `json:"generatedBy"`
	Barcode       string       `json:"barcode"`
	TransactionID string       `json:"transactionId,omitempty"`
}

// User represents an operator or administrator account. The password hash is
// serialized because user records live in the key-value store; API responses
// use PublicUser instead.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	IsActive     bool      `json:"isActive"`
}

// PublicUser is the externally visible projection of a User.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Public returns the projection of u safe to hand to callers.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

// Session is a time-bounded proof of authentication tied to one token.
// A user may hold several concurrent sessions.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CurrentUser is the authenticated identity attached to a request.
type CurrentUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Token string `json:"token"`
}
