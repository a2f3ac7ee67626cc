package review

import (
	"time"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

// DeadlineFor returns the auto-confirm deadline for an impact created at
// createdAt, or nil when the mode never auto-confirms.
//
// Only soft enforcement uses the timer: visibility never gates on
// acknowledgement so no deadline is needed, and under full governance
// impacts wait indefinitely for a human. The deadline is absolute so it
// survives reload and reconnection.
func DeadlineFor(mode models.StrictnessMode, createdAt time.Time, window time.Duration) *time.Time {
	if mode != models.StrictnessSoft {
		return nil
	}
	d := createdAt.Add(window)
	return &d
}

// dueForAutoConfirm reports whether the sweep should fire the
// waiting -> auto_confirmed transition for this impact right now.
// Evaluation is pull-based: callers invoke it on every read of the
// impact set, so correctness never depends on a background scheduler.
func dueForAutoConfirm(mode models.StrictnessMode, imp *models.Impact, now time.Time) bool {
	if mode != models.StrictnessSoft {
		return false
	}
	if imp.AckStatus != models.AckWaiting || imp.AutoConfirmAt == nil {
		return false
	}
	return !now.Before(*imp.AutoConfirmAt)
}
