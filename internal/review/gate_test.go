package review

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

func impactsWith(statuses ...models.AckStatus) []*models.Impact {
	out := make([]*models.Impact, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, &models.Impact{AckStatus: st})
	}
	return out
}

func TestCanMergeVisibility(t *testing.T) {
	// Visibility never gates, even with CI failing and everyone waiting.
	ok, reason := CanMerge(models.StrictnessVisibility, models.CIFailed,
		impactsWith(models.AckWaiting, models.AckWaiting))
	assert.True(t, ok)
	assert.Equal(t, "Visibility mode — merge anytime", reason)
}

func TestCanMergeSoft(t *testing.T) {
	impacts := impactsWith(models.AckWaiting)

	ok, reason := CanMerge(models.StrictnessSoft, models.CIRunning, impacts)
	assert.False(t, ok)
	assert.Equal(t, "Waiting on CI pipeline", reason)

	ok, reason = CanMerge(models.StrictnessSoft, models.CIFailed, impacts)
	assert.False(t, ok)
	assert.Equal(t, "Waiting on CI pipeline", reason)

	// Soft mode ignores acknowledgement state once CI is green.
	ok, reason = CanMerge(models.StrictnessSoft, models.CIPassed, impacts)
	assert.True(t, ok)
	assert.Equal(t, "CI passed — you can merge", reason)
}

func TestCanMergeFull(t *testing.T) {
	tests := []struct {
		name       string
		ci         models.CIStatus
		impacts    []*models.Impact
		wantOK     bool
		wantReason string
	}{
		{
			name:       "ci not passed blocks first",
			ci:         models.CIRunning,
			impacts:    impactsWith(models.AckConfirmed),
			wantOK:     false,
			wantReason: "Waiting on CI pipeline",
		},
		{
			name:       "one outstanding",
			ci:         models.CIPassed,
			impacts:    impactsWith(models.AckWaiting, models.AckConfirmed),
			wantOK:     false,
			wantReason: "1 contributor yet to confirm",
		},
		{
			name:       "plural outstanding counts adjusting too",
			ci:         models.CIPassed,
			impacts:    impactsWith(models.AckWaiting, models.AckAdjusting, models.AckConfirmed),
			wantOK:     false,
			wantReason: "2 contributors yet to confirm",
		},
		{
			name:       "dismissed rows drop out of the gate",
			ci:         models.CIPassed,
			impacts:    impactsWith(models.AckDismissed, models.AckConfirmed),
			wantOK:     true,
			wantReason: "All gates met — ready to merge",
		},
		{
			name:       "auto_confirmed counts as confirmed",
			ci:         models.CIPassed,
			impacts:    impactsWith(models.AckAutoConfirmed, models.AckConfirmed),
			wantOK:     true,
			wantReason: "All gates met — ready to merge",
		},
		{
			name:       "zero impacts is vacuously acknowledged",
			ci:         models.CIPassed,
			impacts:    nil,
			wantOK:     true,
			wantReason: "All gates met — ready to merge",
		},
		{
			name:       "all dismissed",
			ci:         models.CIPassed,
			impacts:    impactsWith(models.AckDismissed, models.AckDismissed),
			wantOK:     true,
			wantReason: "All gates met — ready to merge",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := CanMerge(models.StrictnessFull, tt.ci, tt.impacts)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestCanMergeUnknownMode(t *testing.T) {
	ok, _ := CanMerge(models.StrictnessMode("bogus"), models.CIPassed, nil)
	assert.False(t, ok)
}
