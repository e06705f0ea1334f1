package queue

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	line := FormatLine(Event{
		Type:       EventBookingConfirmed,
		ShowID:     3,
		ShowDate:   "2026-10-15",
		BookingID:  "BK1",
		APIKeyID:   "key-1",
		Customer:   "Ada Lovelace",
		Seats:      []string{"seat-4", "seat-5"},
		TotalPrice: 300,
		OccurredAt: "2026-10-15T18:00:00Z",
	})
	assert.Equal(t,
		`[2026-10-15T18:00:00Z] Booking confirmed | booking_id=BK1 | show_id=3 | date=2026-10-15 | api_key=key-1 | customer="Ada Lovelace" | total=300 | seats=[seat-4,seat-5]`+"\n",
		line)
}

func TestLogWriterAppends(t *testing.T) {
	w := NewLogWriter(t.TempDir() + "/logs")
	for _, typ := range []string{EventSeatsReset, EventBookingCancelled} {
		body, err := json.Marshal(Event{Type: typ, ShowID: 1, Seats: []string{"seat-1"}, OccurredAt: "t"})
		require.NoError(t, err)
		require.NoError(t, w.Handle(body))
	}

	b, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Seats reset")
	assert.Contains(t, lines[1], "Booking cancelled")
}

func TestLogWriterRejectsGarbage(t *testing.T) {
	w := NewLogWriter(t.TempDir())
	assert.Error(t, w.Handle([]byte("not json")))
	assert.Error(t, w.Handle([]byte(`{"show_id":1}`)))
}
