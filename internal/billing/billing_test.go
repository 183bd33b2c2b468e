package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDuration(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		exit time.Time
		want int64
	}{
		{"same instant", base, 0},
		{"one second rounds up", base.Add(time.Second), 1},
		{"exactly one minute", base.Add(time.Minute), 1},
		{"one minute one ms rounds up", base.Add(time.Minute + time.Millisecond), 2},
		{"ninety one minutes", base.Add(91 * time.Minute), 91},
		{"full day", base.Add(24 * time.Hour), 1440},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateDuration(base, tt.exit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateDurationExitBeforeEntry(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := CalculateDuration(base, base.Add(-time.Minute))
	require.ErrorIs(t, err, ErrExitBeforeEntry)
}

func TestCalculateAmount(t *testing.T) {
	tests := []struct {
		name     string
		duration int64
		price    int64
		want     int64
	}{
		{"zero minutes bill nothing", 0, 1000, 0},
		{"one minute bills one hour", 1, 1000, 1000},
		{"sixty minutes bill one hour", 60, 1000, 1000},
		{"sixty one minutes bill two hours", 61, 1000, 2000},
		{"ninety one minutes at voiture rate", 91, 1000, 2000},
		{"camion overnight", 600, 2500, 25000},
		{"free tariff", 90, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateAmount(tt.duration, tt.price))
		})
	}
}
