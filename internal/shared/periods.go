package shared

// Period statuses reused outside the fiscal module.
const (
	PeriodStatusOpen   = "OPEN"
	PeriodStatusClosed = "CLOSED"
	PeriodStatusLocked = "LOCKED"
)

// ErrInvalidPeriodTransition indicates a status change not allowed.
var ErrInvalidPeriodTransition = &Error{
	Code:     "INVALID_PERIOD_TRANSITION",
	Category: CategoryConflict,
	Message:  "period transition invalid",
}

// ValidatePeriodTransition checks the period lifecycle graph. LOCKED is
// terminal; whether a closed period may reopen is tenant policy enforced
// by the caller.
func ValidatePeriodTransition(current, target string) error {
	if current == target {
		return nil
	}
	switch current {
	case PeriodStatusOpen:
		if target == PeriodStatusClosed || target == PeriodStatusLocked {
			return nil
		}
	case PeriodStatusClosed:
		if target == PeriodStatusOpen || target == PeriodStatusLocked {
			return nil
		}
	}
	return ErrInvalidPeriodTransition
}
