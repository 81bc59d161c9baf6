package checkout

import "errors"

// Guard and verification errors surfaced to callers. None of these change
// state beyond what their documentation says; control flow never uses panics.
var (
	// ErrEmptyCart - checkout requested with no stable cart lines.
	ErrEmptyCart = errors.New("checkout requested with empty cart")
	// ErrWrongState - the session is not in a state that permits the operation.
	ErrWrongState = errors.New("operation not allowed in current session state")
	// ErrVerificationMismatch - the biometric reading resolved to a different
	// identity than the session's face-derived one.
	ErrVerificationMismatch = errors.New("biometric identity does not match session identity")
	// ErrVerificationIncomplete - commit gated on both factors; one is missing.
	ErrVerificationIncomplete = errors.New("dual verification incomplete")
	// ErrBiometricTimeout - no biometric reading arrived within the wait window.
	ErrBiometricTimeout = errors.New("timed out waiting for biometric reading")
	// ErrInvalidToken - a biometric reading referenced an unknown or stale
	// verification token.
	ErrInvalidToken = errors.New("unknown verification token")
)
