// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import "errors"

// Every rejection an operation can produce maps to exactly one of these
// values. A rejected operation leaves the session record unchanged.
var (
	ErrInvalidPosition           = errors.New("position is out of range")
	ErrCellOccupied              = errors.New("cell is already occupied")
	ErrNotYourTurn               = errors.New("caller does not hold the turn")
	ErrUnauthorised              = errors.New("caller is unauthorised")
	ErrGameOver                  = errors.New("game is over")
	ErrPlayerAlreadyRegistered   = errors.New("second player is already registered")
	ErrSecondPlayerNotRegistered = errors.New("second player has not registered")
	ErrOverflow                  = errors.New("session counter overflow")

	// ErrSessionDelegated rejects durable-path mutation of a session whose
	// custody currently belongs to the fast layer.
	ErrSessionDelegated = errors.New("session is delegated to the fast layer")
)
