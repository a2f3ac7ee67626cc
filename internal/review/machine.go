package review

import (
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/errors"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

// transitions is the directed graph of allowed acknowledgement moves.
// Terminal states (confirmed, auto_confirmed, dismissed) have no exits;
// an impact never regresses out of them.
var transitions = map[models.AckStatus][]models.AckStatus{
	models.AckWaiting: {
		models.AckConfirmed,
		models.AckAdjusting,
		models.AckDismissed,
		models.AckAutoConfirmed,
	},
	models.AckAdjusting: {
		models.AckConfirmed,
		// Cancel: back to waiting. Any auto-confirm deadline already set
		// stays in place.
		models.AckWaiting,
	},
}

// ValidateTransition checks one acknowledgement move against the state
// machine and the detection-method guard. It does not apply the move.
func ValidateTransition(current, next models.AckStatus, method models.DetectionMethod) error {
	allowed, ok := transitions[current]
	if !ok {
		return errors.InvalidTransitionf("impact is %s, a terminal state", current)
	}
	for _, a := range allowed {
		if a == next {
			// Parser-detected impacts are authoritative: the contributor
			// cannot dismiss them, only a revision request clears them.
			if next == models.AckDismissed && method != models.DetectionLLM {
				return errors.InvalidTransitionf("only llm-detected impacts can be dismissed, this one came from %s", method)
			}
			return nil
		}
	}
	return errors.InvalidTransitionf("cannot move impact from %s to %s", current, next)
}
