package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrForbidden     ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Assessment-specific ───────────────────────────────────────────
	ErrTestNotOpen       ErrCode = "TEST_NOT_OPEN"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS_AVAILABLE"
	ErrCapabilityDenied  ErrCode = "CAPABILITY_DENIED"
	ErrNoActiveSession   ErrCode = "NO_ACTIVE_SESSION"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrInvalidTransition ErrCode = "INVALID_SESSION_TRANSITION"
	ErrPersistenceFailed ErrCode = "PERSISTENCE_FAILED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrForbidden:
		return "You do not have access to this resource."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrNotFound:
		return "Resource not found."
	case ErrTestNotOpen:
		return "This assessment is outside its availability window."
	case ErrNoQuestions:
		return "This assessment has no questions available for delivery."
	case ErrCapabilityDenied:
		return "Camera and microphone access is required to take this assessment."
	case ErrNoActiveSession:
		return "No active assessment session was found."
	case ErrSessionClosed:
		return "This session no longer accepts input."
	case ErrInvalidTransition:
		return "That action is not valid for the current session state."
	case ErrPersistenceFailed:
		return "Your result was computed but could not be saved. Please retry."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
