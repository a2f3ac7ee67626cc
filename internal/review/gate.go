package review

import (
	"fmt"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

// Gate reason strings. Derived algorithmically so callers and tests can
// assert exact values.
const (
	reasonVisibility  = "Visibility mode — merge anytime"
	reasonWaitingCI   = "Waiting on CI pipeline"
	reasonSoftPassed  = "CI passed — you can merge"
	reasonAllGatesMet = "All gates met — ready to merge"
)

// CanMerge is the authoritative merge-gate evaluator. It is a pure
// function of the change's snapshotted strictness mode, its CI status,
// and the current impact set. It must run server-side on every merge
// attempt; a disabled button in a client is a courtesy, not a boundary.
func CanMerge(mode models.StrictnessMode, ci models.CIStatus, impacts []*models.Impact) (bool, string) {
	switch mode {
	case models.StrictnessVisibility:
		return true, reasonVisibility

	case models.StrictnessSoft:
		if ci != models.CIPassed {
			return false, reasonWaitingCI
		}
		return true, reasonSoftPassed

	case models.StrictnessFull:
		if ci != models.CIPassed {
			return false, reasonWaitingCI
		}
		outstanding := 0
		for _, imp := range impacts {
			// Dismissed rows drop out of the gate; everything else must
			// be confirmed. Under full governance auto_confirmed never
			// occurs, so in practice this means human confirmation.
			if imp.AckStatus == models.AckDismissed {
				continue
			}
			if !imp.AckStatus.CountsAsConfirmed() {
				outstanding++
			}
		}
		if outstanding > 0 {
			noun := "contributor"
			if outstanding > 1 {
				noun = "contributors"
			}
			return false, fmt.Sprintf("%d %s yet to confirm", outstanding, noun)
		}
		return true, reasonAllGatesMet
	}

	return false, fmt.Sprintf("unknown strictness mode %q", mode)
}
