package middleware

// Context keys for request metadata shared between the admin panel
// middleware and the logging layer.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserEmail = "user_email"
	ContextKeyUserRole  = "user_role"
	ContextKeyRequestID = "request_id"
)
