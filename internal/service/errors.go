package service

import "errors"

// Business errors returned by the service layer and the hub. Handlers and the
// hub map these to HTTP status codes or error events for the originating
// connection.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrNotAuthenticated     = errors.New("connection has no authenticated user")
	ErrUnknownConnection    = errors.New("connection is not registered")
	ErrDuplicateConnection  = errors.New("connection id already registered")
	ErrStoreUnavailable     = errors.New("durable store unavailable")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: email already exists")
	ErrInternalServer       = errors.New("internal server error")
)
