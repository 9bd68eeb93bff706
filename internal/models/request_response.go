package models

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required,min=2"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type OccupySpotRequest struct {
	LicensePlate string `json:"licensePlate" binding:"required,min=4"`
	VehicleType  string `json:"vehicleType" binding:"required,oneof=car motorcycle truck"`
}

// Response models
type AuthResponse struct {
	Status    string       `json:"status"`
	User      *CurrentUser `json:"user,omitempty"`
	Token     string       `json:"token,omitempty"`
	ExpiresIn int          `json:"expiresIn,omitempty"`
}

type SignUpResponse struct {
	Status string     `json:"status"`
	User   PublicUser `json:"user"`
}

type OccupySpotResponse struct {
	Status  string   `json:"status"`
	Vehicle *Vehicle `json:"vehicle,omitempty"`
	Ticket  *Ticket  `json:"ticket,omitempty"`
}

type FreeSpotResponse struct {
	Status      string       `json:"status"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

type PayTransactionResponse struct {
	Status      string       `json:"status"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Ticket      *Ticket      `json:"ticket,omitempty"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
