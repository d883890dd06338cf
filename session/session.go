// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package session defines the game session record and its state machine.
//
// A session is one board game between two players. Its authoritative copy
// lives in the durable ledger but custody over mutations can be delegated
// to the fast layer and later committed back; custody is an explicit field
// of the record so that guards can check it directly.
package session

import "github.com/luxfi/ids"

// BoardSize is the number of cells on the board (3x3, row-major).
const BoardSize = 9

// Mark is the content of one board cell.
type Mark uint8

const (
	MarkEmpty Mark = 0 // unoccupied cell
	MarkA     Mark = 1 // mark of the session creator
	MarkB     Mark = 2 // mark of the second player
)

func (m Mark) String() string {
	switch m {
	case MarkA:
		return "A"
	case MarkB:
		return "B"
	default:
		return ""
	}
}

// Status is the lifecycle state of a session. There are exactly two:
// Finished sessions have no outgoing transitions and are retained as a
// permanent record.
type Status uint8

const (
	Open     Status = 0
	Finished Status = 1
)

func (s Status) String() string {
	if s == Finished {
		return "finished"
	}
	return "open"
}

// Custody names the execution context that is currently authoritative to
// apply mutations to the session.
type Custody uint8

const (
	// CustodyLocal means the durable ledger owns the record.
	CustodyLocal Custody = 0
	// CustodyDelegated means the fast layer owns the record and the
	// durable copy is frozen until undelegation commits it back.
	CustodyDelegated Custody = 1
)

func (c Custody) String() string {
	if c == CustodyDelegated {
		return "delegated"
	}
	return "local"
}

// winningTriples are the 8 cell triples that decide a game: three rows,
// three columns and both diagonals, in row-major cell indices.
var winningTriples = [8][3]uint8{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Session is the full per-game record persisted by the state store.
//
// PlayerB and Winner use the zero ShortID as the "null identity" sentinel.
// SessionID is assigned from the owner's counter at creation and never
// changes; cells only ever transition from empty to a mark.
type Session struct {
	SessionID  uint64          `serialize:"true" json:"sessionId"`
	PlayerA    ids.ShortID     `serialize:"true" json:"playerA"`
	PlayerB    ids.ShortID     `serialize:"true" json:"playerB"`
	TurnHolder ids.ShortID     `serialize:"true" json:"turnHolder"`
	Winner     ids.ShortID     `serialize:"true" json:"winner"`
	Cells      [BoardSize]Mark `serialize:"true" json:"cells"`
	Status     Status          `serialize:"true" json:"status"`
	Custody    Custody         `serialize:"true" json:"custody"`
	Executor   ids.NodeID      `serialize:"true" json:"executor"`
}

// New returns a fresh Open session owned by owner: owner is player A and
// holds the first turn, the board is empty and custody is local.
func New(owner ids.ShortID, sessionID uint64) *Session {
	return &Session{
		SessionID:  sessionID,
		PlayerA:    owner,
		PlayerB:    ids.ShortEmpty,
		TurnHolder: owner,
		Winner:     ids.ShortEmpty,
		Status:     Open,
		Custody:    CustodyLocal,
	}
}

// Copy returns a deep copy of the session. Operations mutate a copy and
// persist it only after every precondition passed, so a rejected operation
// leaves the stored record byte-for-byte unchanged.
func (s *Session) Copy() *Session {
	c := *s
	return &c
}

// SetSecondPlayer records the second player. Preconditions (session open,
// slot empty, candidate distinct from player A) are the guard's job.
func (s *Session) SetSecondPlayer(candidate ids.ShortID) {
	s.PlayerB = candidate
}

// MoveOutcome describes the result of an applied move.
type MoveOutcome uint8

const (
	// OutcomeContinue means the game goes on and the turn flipped.
	OutcomeContinue MoveOutcome = 0
	// OutcomeWin means the move completed a winning triple.
	OutcomeWin MoveOutcome = 1
	// OutcomeDraw means the move filled the board with no winner.
	OutcomeDraw MoveOutcome = 2
)

// ApplyMove writes mark at position for caller and settles the session:
// the win check runs strictly before the full-board check so a move that
// both completes a triple and fills the board scores as a win, and the
// turn only flips when the game continues. Preconditions are the guard's
// job; position must already be validated.
func (s *Session) ApplyMove(caller ids.ShortID, mark Mark, position uint8) MoveOutcome {
	s.Cells[position] = mark

	if s.hasWinningTriple(mark) {
		s.Winner = caller
		s.Status = Finished
		return OutcomeWin
	}
	if s.boardFull() {
		s.Status = Finished
		return OutcomeDraw
	}

	if s.TurnHolder == s.PlayerA {
		s.TurnHolder = s.PlayerB
	} else {
		s.TurnHolder = s.PlayerA
	}
	return OutcomeContinue
}

// MarkOf maps a registered player to their mark.
func (s *Session) MarkOf(player ids.ShortID) (Mark, error) {
	switch {
	case player == s.PlayerA:
		return MarkA, nil
	case player == s.PlayerB && s.PlayerB != ids.ShortEmpty:
		return MarkB, nil
	default:
		return MarkEmpty, ErrUnauthorised
	}
}

func (s *Session) hasWinningTriple(mark Mark) bool {
	for _, t := range winningTriples {
		if s.Cells[t[0]] == mark && s.Cells[t[1]] == mark && s.Cells[t[2]] == mark {
			return true
		}
	}
	return false
}

func (s *Session) boardFull() bool {
	for _, c := range s.Cells {
		if c == MarkEmpty {
			return false
		}
	}
	return true
}
