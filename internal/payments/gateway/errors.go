package gateway

import "fmt"

// AuthError means no session credential could be obtained. Callers may retry.
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway auth failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("gateway auth failed (status %d): %s", e.StatusCode, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// SubmitError means the charge request was not accepted, either because the
// gateway answered with a non-zero response code or because it could not be
// reached. Callers may retry.
type SubmitError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("charge submission failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("charge submission failed (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}
