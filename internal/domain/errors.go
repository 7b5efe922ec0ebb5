package domain

import "errors"

var (
	// ErrValidation marks malformed question data or caller input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a theme does not exist or is inactive.
	ErrNotFound = errors.New("theme unavailable")
	// ErrInvalidState is returned when the session state machine is misused.
	ErrInvalidState = errors.New("invalid session state")
	// ErrConfiguration indicates a malformed level-band table.
	ErrConfiguration = errors.New("invalid level configuration")
	// ErrSessionNotFound is returned when a quiz session has expired or never existed.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrStore wraps persistence failures; callers should try again.
	ErrStore = errors.New("store unavailable, try again")
)

// ErrThemeNotFound reads better at catalog call sites.
var ErrThemeNotFound = ErrNotFound
