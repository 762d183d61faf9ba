package utils

type ContextKey string

const (
	UserKey      ContextKey = "user"
	RequestIDKey ContextKey = "request_id"

	// JWT claim names
	UserIDKey string = "user_id"
	RoleKey   string = "role"
	ExpKey    string = "exp"
)
