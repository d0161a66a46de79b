package domain

import "errors"

var (
	// Engine errors
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyInitialized = errors.New("connection pool already initialized")
	ErrNotInitialized     = errors.New("connection pool not initialized")
	ErrOutOfSpace         = errors.New("long query buffer out of space")
	ErrNotFound           = errors.New("entity not found")
	ErrNotReady           = errors.New("query not finished yet")
	ErrClosed             = errors.New("engine closed")
	ErrNoConnection       = errors.New("no live database connection")
)
