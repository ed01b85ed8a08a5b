package store

import "errors"

var (
	// ErrAlreadyActive is returned by Start when the competition is running.
	ErrAlreadyActive = errors.New("competition already active")

	// ErrAlreadyFinished is returned by Start after the competition ended.
	ErrAlreadyFinished = errors.New("competition already finished")

	// ErrNotStarted is returned by End when the competition is not active.
	ErrNotStarted = errors.New("competition not started")

	// ErrRateLimited is returned when a restore command arrives while the
	// box's cooldown is still running.
	ErrRateLimited = errors.New("box command rate limited")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
