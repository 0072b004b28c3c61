package deeplink

import (
	"encoding/json"
	"fmt"
)

// AuthState represents the resolved state of the auth readiness gate.
// It is tri-state: Unknown until the auth subsystem reports, then SignedIn
// or SignedOut. Unknown must never be treated as SignedIn.
type AuthState int32

const (
	// AuthUnknown indicates the auth subsystem has not reported yet.
	AuthUnknown AuthState = iota

	// AuthSignedIn indicates a resolved, authenticated session.
	AuthSignedIn

	// AuthSignedOut indicates a resolved, unauthenticated session.
	AuthSignedOut
)

// String returns the string representation of the auth state.
func (s AuthState) String() string {
	switch s {
	case AuthUnknown:
		return "unknown"
	case AuthSignedIn:
		return "signed-in"
	case AuthSignedOut:
		return "signed-out"
	default:
		return fmt.Sprintf("authstate(%d)", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s AuthState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *AuthState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseAuthState(str)
	return nil
}

// ParseAuthState converts a string to AuthState.
func ParseAuthState(s string) AuthState {
	switch s {
	case "signed-in", "authenticated":
		return AuthSignedIn
	case "signed-out", "unauthenticated":
		return AuthSignedOut
	default:
		return AuthUnknown
	}
}

// IsSignedIn returns true only for a resolved, authenticated session.
func (s AuthState) IsSignedIn() bool {
	return s == AuthSignedIn
}

// IsResolved returns true once the auth subsystem has reported either way.
func (s AuthState) IsResolved() bool {
	return s == AuthSignedIn || s == AuthSignedOut
}
