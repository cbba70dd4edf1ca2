package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Shipment status values. A shipment starts as pending, moves to
// in_transit once a checkpoint scans it, and terminates as either
// received or tampered. No lifecycle transition clears a tamper flag;
// only a direct status edit does.
const (
	StatusPending   = "pending"
	StatusInTransit = "in_transit"
	StatusReceived  = "received"
	StatusTampered  = "tampered"
)

// Ledger actions recorded against location events.
const (
	ActionDispatched = "dispatched"
	ActionCheckedIn  = "checked_in"
	ActionVerified   = "verified"
	ActionTampered   = "tampered"
)

// DefaultOfficer is recorded when a checkpoint scan omits the officer name.
const DefaultOfficer = "Unknown"

// LocationEvent is a single entry in a shipment's append-only ledger.
type LocationEvent struct {
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
	Officer     string    `json:"officer"`
	Action      string    `json:"action"`
	Coordinates []float64 `json:"coordinates,omitempty"`
}

// LocationHistory is the ordered ledger of location events. It is
// persisted as a JSONB column.
type LocationHistory []LocationEvent

// Value implements driver.Valuer for JSONB storage
func (h LocationHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner for JSONB storage
func (h *LocationHistory) Scan(value interface{}) error {
	if value == nil {
		*h = LocationHistory{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for LocationHistory: %T", value)
	}

	return json.Unmarshal(data, h)
}

// Shipment represents a tracked relief shipment
type Shipment struct {
	ID              string          `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	Supply          string          `json:"supply" db:"supply"`
	InitLoc         string          `json:"initLoc" db:"init_loc"`
	FinalLoc        string          `json:"finalLoc" db:"final_loc"`
	Date            string          `json:"date" db:"date"`
	Status          string          `json:"status" db:"status"`
	CurrentLocation string          `json:"currentLocation" db:"current_location"`
	LocationHistory LocationHistory `json:"locationHistory" db:"location_history"`
	ReceivedAt      *time.Time      `json:"receivedAt,omitempty" db:"received_at"`
	TamperedAt      *time.Time      `json:"tamperedAt,omitempty" db:"tampered_at"`
	Version         int64           `json:"-" db:"version"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// NewShipment builds a shipment in its initial state: status derived
// from the supplied value, current location at the origin, and a
// single dispatch entry opening the ledger.
func NewShipment(id, name, supply, initLoc, finalLoc, date, status string, now time.Time) *Shipment {
	return &Shipment{
		ID:              id,
		Name:            name,
		Supply:          supply,
		InitLoc:         initLoc,
		FinalLoc:        finalLoc,
		Date:            date,
		Status:          NormalizeStatus(status),
		CurrentLocation: initLoc,
		LocationHistory: LocationHistory{
			{
				Location:  initLoc,
				Timestamp: now,
				Officer:   "System",
				Action:    ActionDispatched,
			},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendEvent adds an entry to the ledger and moves the current
// location pointer. This is the only way the ledger grows; existing
// entries are never rewritten.
func (s *Shipment) AppendEvent(event LocationEvent) {
	if event.Officer == "" {
		event.Officer = DefaultOfficer
	}
	if event.Action == "" {
		event.Action = ActionCheckedIn
	}
	s.LocationHistory = append(s.LocationHistory, event)
	s.CurrentLocation = event.Location
}

// IsTerminal reports whether the shipment has reached a terminal status.
func (s *Shipment) IsTerminal() bool {
	return s.Status == StatusReceived || s.Status == StatusTampered
}

// NormalizeStatus buckets a raw status string. Empty means the
// shipment was just created and hasn't moved; anything not otherwise
// recognized counts as in transit.
func NormalizeStatus(raw string) string {
	switch raw {
	case "", StatusPending:
		return StatusPending
	case StatusReceived:
		return StatusReceived
	case StatusTampered:
		return StatusTampered
	default:
		return StatusInTransit
	}
}

// CreateShipmentRequest is the payload for registering a shipment
type CreateShipmentRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Supply   string `json:"supply"`
	InitLoc  string `json:"initLoc"`
	FinalLoc string `json:"finalLoc"`
	Date     string `json:"date"`
	Status   string `json:"status"`
}

// UpdateShipmentRequest carries partial updates. Empty fields keep
// the stored value. Including a location also appends a ledger entry.
type UpdateShipmentRequest struct {
	Name     string `json:"name"`
	Supply   string `json:"supply"`
	InitLoc  string `json:"initLoc"`
	FinalLoc string `json:"finalLoc"`
	Date     string `json:"date"`
	Status   string `json:"status"`
	Location string `json:"location"`
	Officer  string `json:"officer"`
	Action   string `json:"action"`
}

// AppendLocationRequest is the payload for a checkpoint scan
type AppendLocationRequest struct {
	Location    string    `json:"location"`
	Officer     string    `json:"officer"`
	Action      string    `json:"action"`
	Coordinates []float64 `json:"coordinates"`
}

// VerifyShipmentRequest marks a shipment verified at a checkpoint.
// Complete distinguishes terminal receipt from a mere check-in.
type VerifyShipmentRequest struct {
	Officer  string `json:"officer"`
	Location string `json:"location"`
	Complete bool   `json:"complete"`
}
