// Package supabase provides the client-side Supabase surface the app core
// talks to: auth, PostgREST queries and the realtime channel transport.
package supabase

import (
	"time"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds Supabase client configuration.
type Config struct {
	// ProjectURL is the Supabase project URL (e.g., https://xxx.supabase.co)
	ProjectURL string

	// AnonKey is the public anon key sent with every request.
	AnonKey string

	// AllowedHosts restricts outbound requests (derived from ProjectURL if empty)
	AllowedHosts []string

	// DefaultHeaders are added to every request
	DefaultHeaders map[string]string

	// Timeout for HTTP requests
	Timeout time.Duration

	// HeartbeatInterval for realtime websocket connections.
	HeartbeatInterval time.Duration
}

// =============================================================================
// Auth Types
// =============================================================================

// User represents a Supabase user.
type User struct {
	ID               string                 `json:"id"`
	Aud              string                 `json:"aud"`
	Role             string                 `json:"role"`
	Email            string                 `json:"email"`
	EmailConfirmedAt *time.Time             `json:"email_confirmed_at,omitempty"`
	Phone            string                 `json:"phone,omitempty"`
	ConfirmedAt      *time.Time             `json:"confirmed_at,omitempty"`
	LastSignInAt     *time.Time             `json:"last_sign_in_at,omitempty"`
	AppMetadata      map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata     map[string]interface{} `json:"user_metadata,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// Session represents an auth session.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// CallbackParams carries the credentials extracted from an auth-callback
// deep link: either a PKCE code or an implicit-flow token pair.
type CallbackParams struct {
	Code         string
	AccessToken  string
	RefreshToken string
}

// =============================================================================
// Database Types
// =============================================================================

// FilterOperator for query filters.
type FilterOperator string

const (
	OpEq  FilterOperator = "eq"
	OpNeq FilterOperator = "neq"
	OpGt  FilterOperator = "gt"
	OpGte FilterOperator = "gte"
	OpLt  FilterOperator = "lt"
	OpLte FilterOperator = "lte"
	OpIn  FilterOperator = "in"
)

// OrderDirection for sorting.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// =============================================================================
// Realtime Types
// =============================================================================

// RealtimeEvent represents a postgres change delivered over a channel.
type RealtimeEvent struct {
	Type      string                 `json:"type"`
	Table     string                 `json:"table"`
	Schema    string                 `json:"schema"`
	Record    map[string]interface{} `json:"record,omitempty"`
	OldRecord map[string]interface{} `json:"old_record,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// RealtimeEventType for subscription filtering.
type RealtimeEventType string

const (
	EventInsert RealtimeEventType = "INSERT"
	EventUpdate RealtimeEventType = "UPDATE"
	EventDelete RealtimeEventType = "DELETE"
	EventAll    RealtimeEventType = "*"
)

// SubscriptionConfig for realtime subscriptions.
type SubscriptionConfig struct {
	Schema string            `json:"schema"`
	Table  string            `json:"table"`
	Event  RealtimeEventType `json:"event"`
	Filter string            `json:"filter,omitempty"` // Optional PostgREST filter
}

// RealtimeHandler handles realtime events.
type RealtimeHandler func(event RealtimeEvent)

// =============================================================================
// Error Types
// =============================================================================

// Error represents a Supabase API error.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
	StatusCode int    `json:"status_code"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// NewError creates a new Supabase error.
func NewError(code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Common errors
var (
	ErrUnauthorized = NewError("unauthorized", "unauthorized", 401)
	ErrForbidden    = NewError("forbidden", "forbidden", 403)
	ErrNotFound     = NewError("not_found", "resource not found", 404)
	ErrConflict     = NewError("conflict", "resource already exists", 409)
)
