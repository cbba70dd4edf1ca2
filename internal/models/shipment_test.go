package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShipment(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	s := NewShipment("S1", "Medkit", "Medical", "Delhi", "Mumbai", "2024-01-01", "", now)

	assert.Equal(t, "S1", s.ID)
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, "Delhi", s.CurrentLocation)
	assert.Equal(t, int64(1), s.Version)

	require.Len(t, s.LocationHistory, 1)
	first := s.LocationHistory[0]
	assert.Equal(t, "Delhi", first.Location)
	assert.Equal(t, "System", first.Officer)
	assert.Equal(t, ActionDispatched, first.Action)
	assert.Equal(t, now, first.Timestamp)
}

func TestAppendEventMovesCurrentLocation(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewShipment("S1", "Medkit", "Medical", "Delhi", "Mumbai", "2024-01-01", "", now)

	s.AppendEvent(LocationEvent{
		Location:  "Jaipur",
		Timestamp: now.Add(2 * time.Hour),
		Officer:   "A",
		Action:    ActionCheckedIn,
	})

	assert.Equal(t, "Jaipur", s.CurrentLocation)
	require.Len(t, s.LocationHistory, 2)
	assert.Equal(t, "Jaipur", s.LocationHistory[1].Location)
}

func TestAppendEventDefaults(t *testing.T) {
	now := time.Now().UTC()
	s := NewShipment("S1", "Medkit", "Medical", "Delhi", "Mumbai", "2024-01-01", "", now)

	s.AppendEvent(LocationEvent{Location: "Jaipur", Timestamp: now})

	last := s.LocationHistory[len(s.LocationHistory)-1]
	assert.Equal(t, DefaultOfficer, last.Officer)
	assert.Equal(t, ActionCheckedIn, last.Action)
}

func TestAppendEventPreservesPriorEntries(t *testing.T) {
	now := time.Now().UTC()
	s := NewShipment("S1", "Medkit", "Medical", "Delhi", "Mumbai", "2024-01-01", "", now)

	before := make(LocationHistory, len(s.LocationHistory))
	copy(before, s.LocationHistory)

	s.AppendEvent(LocationEvent{Location: "Jaipur", Timestamp: now, Officer: "A"})
	s.AppendEvent(LocationEvent{Location: "Surat", Timestamp: now, Officer: "B"})

	assert.Equal(t, before[0], s.LocationHistory[0])
	assert.Len(t, s.LocationHistory, 3)
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", StatusPending},
		{"pending", StatusPending},
		{"received", StatusReceived},
		{"tampered", StatusTampered},
		{"in_transit", StatusInTransit},
		{"at customs", StatusInTransit},
		{"LOST", StatusInTransit},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeStatus(tt.raw), "raw=%q", tt.raw)
	}
}

func TestIsTerminal(t *testing.T) {
	now := time.Now().UTC()

	s := NewShipment("S1", "Medkit", "Medical", "Delhi", "Mumbai", "2024-01-01", "", now)
	assert.False(t, s.IsTerminal())

	s.Status = StatusReceived
	assert.True(t, s.IsTerminal())

	s.Status = StatusTampered
	assert.True(t, s.IsTerminal())
}

func TestLocationHistoryScanValue(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	history := LocationHistory{
		{Location: "Delhi", Timestamp: now, Officer: "System", Action: ActionDispatched},
		{Location: "Jaipur", Timestamp: now.Add(time.Hour), Officer: "A", Action: ActionCheckedIn, Coordinates: []float64{75.78, 26.92}},
	}

	value, err := history.Value()
	require.NoError(t, err)

	var decoded LocationHistory
	require.NoError(t, decoded.Scan(value))

	require.Len(t, decoded, 2)
	assert.Equal(t, history[0].Location, decoded[0].Location)
	assert.Equal(t, history[1].Coordinates, decoded[1].Coordinates)
	assert.True(t, history[1].Timestamp.Equal(decoded[1].Timestamp))
}

func TestLocationHistoryScanNil(t *testing.T) {
	var decoded LocationHistory
	require.NoError(t, decoded.Scan(nil))
	assert.Empty(t, decoded)
}

func TestGenerateID(t *testing.T) {
	id := GenerateID("EVT")
	assert.Regexp(t, `^EVT-[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, GenerateID("EVT"))
}

func TestNewShipmentEventCarriesEventID(t *testing.T) {
	shipment := NewShipment("S1", "Medkit", "Medical", "Delhi", "Mumbai", "2024-01-01", "", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	msg, err := NewShipmentEvent(EventShipmentCreated, shipment, "System", shipment.LocationHistory[0].Timestamp)
	require.NoError(t, err)

	var payload ShipmentEventPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Regexp(t, `^EVT-[0-9a-f]{8}$`, payload.EventID)
	assert.Equal(t, "S1", payload.ShipmentID)
}
