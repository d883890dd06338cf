// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package authz centralizes the precondition predicates that gate every
// session state transition, so they are enforced identically whether the
// durable ledger or the fast layer is processing the call. The package
// holds no state of its own.
package authz

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/gamevm/session"
)

// CheckLocalCustody rejects durable-path mutation of a session whose
// custody belongs to the fast layer.
func CheckLocalCustody(s *session.Session) error {
	if s.Custody == session.CustodyDelegated {
		return session.ErrSessionDelegated
	}
	return nil
}

// CanRegisterSecondPlayer gates the register_second_player transition.
func CanRegisterSecondPlayer(s *session.Session, candidate ids.ShortID) error {
	if s.Status != session.Open {
		return session.ErrGameOver
	}
	if s.PlayerB != ids.ShortEmpty || candidate == s.PlayerA {
		return session.ErrPlayerAlreadyRegistered
	}
	return nil
}

// CanRejoinSecondPlayer gates the read-only rejoin confirmation.
func CanRejoinSecondPlayer(s *session.Session, caller ids.ShortID) error {
	if s.Status != session.Open {
		return session.ErrGameOver
	}
	if s.PlayerB == ids.ShortEmpty || caller != s.PlayerB {
		return session.ErrUnauthorised
	}
	return nil
}

// CanMove gates make_move. Check order is load-bearing: position range,
// then session status, turn, registration and membership, then the target
// cell.
func CanMove(s *session.Session, caller ids.ShortID, position uint8) error {
	if position >= session.BoardSize {
		return session.ErrInvalidPosition
	}
	if s.Status != session.Open {
		return session.ErrGameOver
	}
	if caller != s.TurnHolder {
		return session.ErrNotYourTurn
	}
	if s.PlayerB == ids.ShortEmpty {
		return session.ErrSecondPlayerNotRegistered
	}
	if s.TurnHolder != s.PlayerA && s.TurnHolder != s.PlayerB {
		return session.ErrUnauthorised
	}
	if s.Cells[position] != session.MarkEmpty {
		return session.ErrCellOccupied
	}
	return nil
}

// CanTransferCustody gates both bridge operations: only the session's
// creator may move custody, and the record must live at the address
// derived from (creator, session id). An address mismatch is fatal and
// aborts without state change.
func CanTransferCustody(s *session.Session, requester ids.ShortID, have, want ids.ID) error {
	if requester != s.PlayerA {
		return session.ErrUnauthorised
	}
	if have != want {
		return session.ErrUnauthorised
	}
	return nil
}
