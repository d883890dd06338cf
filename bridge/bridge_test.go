// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/gamevm/session"
	"github.com/luxfi/gamevm/state"
)

type env struct {
	ledger *state.State
	fast   *state.State
	bridge *Bridge

	owner ids.ShortID
	addr  ids.ID
}

func newEnv(t *testing.T) *env {
	t.Helper()

	ledger := state.New(memdb.New(), state.HashDeriver{}, 16)
	fast := state.New(memdb.New(), state.HashDeriver{}, 16)

	owner := ids.GenerateTestShortID()
	sess := session.New(owner, 0)
	sess.SetSecondPlayer(ids.GenerateTestShortID())
	addr := ledger.Deriver().SessionAddress(owner, 0)
	require.NoError(t, ledger.PutSession(addr, sess))

	return &env{
		ledger: ledger,
		fast:   fast,
		bridge: New(log.NoLog{}, ledger, fast),
		owner:  owner,
		addr:   addr,
	}
}

func TestDelegate(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	executor := ids.GenerateTestNodeID()

	require.NoError(e.bridge.Delegate(e.owner, e.addr, executor))

	ledgerCopy, err := e.ledger.GetSession(e.addr)
	require.NoError(err)
	require.Equal(session.CustodyDelegated, ledgerCopy.Custody)
	require.Equal(executor, ledgerCopy.Executor)

	fastCopy, err := e.fast.GetSession(e.addr)
	require.NoError(err)
	require.Equal(ledgerCopy, fastCopy)
}

func TestDelegateIdempotent(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	executor := ids.GenerateTestNodeID()

	require.NoError(e.bridge.Delegate(e.owner, e.addr, executor))

	// Repeating the request, even naming a different executor, changes
	// nothing.
	require.NoError(e.bridge.Delegate(e.owner, e.addr, ids.GenerateTestNodeID()))

	ledgerCopy, err := e.ledger.GetSession(e.addr)
	require.NoError(err)
	require.Equal(executor, ledgerCopy.Executor)
}

func TestDelegateUnauthorised(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	stranger := ids.GenerateTestShortID()

	err := e.bridge.Delegate(stranger, e.addr, ids.GenerateTestNodeID())
	require.ErrorIs(err, session.ErrUnauthorised)

	// No write happened on either side.
	ledgerCopy, err := e.ledger.GetSession(e.addr)
	require.NoError(err)
	require.Equal(session.CustodyLocal, ledgerCopy.Custody)

	_, err = e.fast.GetSession(e.addr)
	require.ErrorIs(err, state.ErrSessionNotFound)
}

func TestDelegateMissingSession(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	err := e.bridge.Delegate(e.owner, ids.GenerateTestID(), ids.GenerateTestNodeID())
	require.ErrorIs(err, state.ErrSessionNotFound)
}

func TestUndelegateAndCommit(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	require.NoError(e.bridge.Delegate(e.owner, e.addr, ids.GenerateTestNodeID()))

	// Progress the game on the fast copy.
	fastCopy, err := e.fast.GetSession(e.addr)
	require.NoError(err)
	fastCopy.Cells[4] = session.MarkA
	fastCopy.TurnHolder = fastCopy.PlayerB
	require.NoError(e.fast.PutSession(e.addr, fastCopy))

	require.NoError(e.bridge.UndelegateAndCommit(e.owner, e.addr))

	// The ledger holds the fast layer's progress, back in local custody.
	ledgerCopy, err := e.ledger.GetSession(e.addr)
	require.NoError(err)
	require.Equal(session.MarkA, ledgerCopy.Cells[4])
	require.Equal(ledgerCopy.PlayerB, ledgerCopy.TurnHolder)
	require.Equal(session.CustodyLocal, ledgerCopy.Custody)
	require.Equal(ids.EmptyNodeID, ledgerCopy.Executor)

	// The fast copy is gone.
	_, err = e.fast.GetSession(e.addr)
	require.ErrorIs(err, state.ErrSessionNotFound)
}

func TestRoundTripPreservesRecord(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)

	before, err := e.ledger.SessionBytes(e.addr)
	require.NoError(err)

	// Delegate and immediately undelegate with no moves in between.
	require.NoError(e.bridge.Delegate(e.owner, e.addr, ids.GenerateTestNodeID()))
	require.NoError(e.bridge.UndelegateAndCommit(e.owner, e.addr))

	// The stored encoding is byte-for-byte what it was before the
	// round trip: custody back to local, executor cleared, game state
	// untouched.
	after, err := e.ledger.SessionBytes(e.addr)
	require.NoError(err)
	require.Equal(before, after)

	// Same property for an unpinned delegation.
	require.NoError(e.bridge.Delegate(e.owner, e.addr, ids.EmptyNodeID))
	require.NoError(e.bridge.UndelegateAndCommit(e.owner, e.addr))

	after, err = e.ledger.SessionBytes(e.addr)
	require.NoError(err)
	require.Equal(before, after)
}

func TestUndelegateIdempotent(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)

	// Never delegated: undelegating is a no-op, not an error.
	require.NoError(e.bridge.UndelegateAndCommit(e.owner, e.addr))

	require.NoError(e.bridge.Delegate(e.owner, e.addr, ids.GenerateTestNodeID()))
	require.NoError(e.bridge.UndelegateAndCommit(e.owner, e.addr))
	require.NoError(e.bridge.UndelegateAndCommit(e.owner, e.addr))

	ledgerCopy, err := e.ledger.GetSession(e.addr)
	require.NoError(err)
	require.Equal(session.CustodyLocal, ledgerCopy.Custody)
}

func TestUndelegateUnauthorised(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	require.NoError(e.bridge.Delegate(e.owner, e.addr, ids.GenerateTestNodeID()))

	err := e.bridge.UndelegateAndCommit(ids.GenerateTestShortID(), e.addr)
	require.ErrorIs(err, session.ErrUnauthorised)

	// Custody did not move.
	ledgerCopy, err := e.ledger.GetSession(e.addr)
	require.NoError(err)
	require.Equal(session.CustodyDelegated, ledgerCopy.Custody)
}
