package models

const (
	ErrTypeNodeNotFound     = "node-not-found"
	ErrTypeNodeExists       = "node-exists"
	ErrTypeInvalidHandle    = "invalid-handle"
	ErrTypeInvalidNavType   = "invalid-nav-type"
	ErrTypeInvalidSnapshot  = "invalid-snapshot"
	ErrTypeHandlesExhausted = "handles-exhausted"
)
