// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gamevm

import (
	"errors"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/gamevm/authz"
	"github.com/luxfi/gamevm/events"
	"github.com/luxfi/gamevm/metrics"
	"github.com/luxfi/gamevm/session"
	"github.com/luxfi/gamevm/state"
)

var errSessionCapReached = errors.New("session cap reached for owner")

// executor applies session operations against one store. The VM holds
// two: one over the durable ledger and one over the fast layer. Both run
// the same precondition predicates; they differ only in which custody
// value they accept, so a session is always mutated by exactly one side.
type executor struct {
	log     log.Logger
	state   *state.State
	emitter events.Emitter
	metrics metrics.Metrics

	// local marks the durable-ledger executor. The ledger refuses
	// sessions delegated away; the fast layer refuses sessions it was
	// never given.
	local bool

	// maxSessionsPerOwner caps session creation when non-zero.
	maxSessionsPerOwner uint64
}

func (e *executor) checkCustody(sess *session.Session) error {
	if e.local {
		return authz.CheckLocalCustody(sess)
	}
	if sess.Custody != session.CustodyDelegated {
		return session.ErrUnauthorised
	}
	return nil
}

// createSession allocates owner's next session identifier, writes the
// fresh session record at its derived address, and announces it.
func (e *executor) createSession(owner ids.ShortID) (*session.Session, ids.ID, error) {
	if e.maxSessionsPerOwner > 0 {
		created, err := e.state.GamesCreated(owner)
		if err != nil {
			return nil, ids.Empty, err
		}
		if created >= e.maxSessionsPerOwner {
			return nil, ids.Empty, errSessionCapReached
		}
	}

	sessionID, err := e.state.NextSessionID(owner)
	if err != nil {
		return nil, ids.Empty, err
	}

	sess := session.New(owner, sessionID)
	addr := e.state.Deriver().SessionAddress(owner, sessionID)
	if err := e.state.PutSession(addr, sess); err != nil {
		return nil, ids.Empty, err
	}

	e.emitter.Emit(&events.SessionCreated{
		SessionID: sessionID,
		Owner:     owner,
	})
	e.metrics.IncSessionsCreated()

	e.log.Info("session created",
		"owner", owner,
		"sessionID", sessionID,
		"addr", addr,
	)
	return sess, addr, nil
}

// registerSecondPlayer fills the open player slot with candidate.
func (e *executor) registerSecondPlayer(addr ids.ID, candidate ids.ShortID) (*session.Session, error) {
	sess, err := e.state.GetSession(addr)
	if err != nil {
		return nil, err
	}
	if err := e.checkCustody(sess); err != nil {
		return nil, err
	}
	if err := authz.CanRegisterSecondPlayer(sess, candidate); err != nil {
		return nil, err
	}

	sess.SetSecondPlayer(candidate)
	if err := e.state.PutSession(addr, sess); err != nil {
		return nil, err
	}

	e.log.Info("second player registered",
		"addr", addr,
		"player", candidate,
	)
	return sess, nil
}

// rejoinSecondPlayer confirms caller is the registered second player of
// an open session. It writes nothing.
func (e *executor) rejoinSecondPlayer(addr ids.ID, caller ids.ShortID) (*session.Session, error) {
	sess, err := e.state.GetSession(addr)
	if err != nil {
		return nil, err
	}
	if err := authz.CanRejoinSecondPlayer(sess, caller); err != nil {
		return nil, err
	}
	return sess, nil
}

// makeMove places caller's mark at position and settles the outcome. The
// move announcement precedes the outcome announcement.
func (e *executor) makeMove(addr ids.ID, caller ids.ShortID, position uint8) (*session.Session, error) {
	sess, err := e.state.GetSession(addr)
	if err != nil {
		return nil, err
	}
	if err := e.checkCustody(sess); err != nil {
		return nil, err
	}
	if err := authz.CanMove(sess, caller, position); err != nil {
		return nil, err
	}

	mark, err := sess.MarkOf(caller)
	if err != nil {
		return nil, err
	}

	outcome := sess.ApplyMove(caller, mark, position)
	if err := e.state.PutSession(addr, sess); err != nil {
		return nil, err
	}

	opponent := sess.PlayerA
	if caller == sess.PlayerA {
		opponent = sess.PlayerB
	}

	e.emitter.Emit(&events.MoveMade{
		Player:    caller,
		Position:  position,
		SessionID: sess.SessionID,
		Opponent:  opponent,
	})
	e.metrics.IncMovesApplied()

	switch outcome {
	case session.OutcomeWin:
		e.emitter.Emit(&events.GameWon{
			Winner:    caller,
			SessionID: sess.SessionID,
			Loser:     opponent,
		})
		e.metrics.IncGamesWon()
		e.log.Info("game won",
			"addr", addr,
			"winner", caller,
			"sessionID", sess.SessionID,
		)
	case session.OutcomeDraw:
		e.emitter.Emit(&events.GameDraw{
			SessionID: sess.SessionID,
			Players:   []ids.ShortID{sess.PlayerA, sess.PlayerB},
		})
		e.metrics.IncGamesDrawn()
		e.log.Info("game drawn",
			"addr", addr,
			"sessionID", sess.SessionID,
		)
	default:
		e.log.Debug("move applied",
			"addr", addr,
			"player", caller,
			"position", position,
		)
	}
	return sess, nil
}
