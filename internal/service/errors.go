package service

import (
	"errors"

	"github.com/allihive/ft-transcendence-sub001/internal/repository"
)

// Validation errors: rejected before any state is touched.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidScore   = errors.New("winner score must exceed loser score")
	ErrNotParticipant = errors.New("player is not a participant of the match")
	ErrPlayerInMatch  = errors.New("player is in an active match")
	ErrRateLimited    = errors.New("too many queue joins")
)

// Not-found conditions: usually a client retry or a desync, not bad input.
var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrPlayerNotFound = repository.ErrPlayerNotFound
)
