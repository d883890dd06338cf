// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"

	"github.com/luxfi/gamevm/session"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	return New(memdb.New(), HashDeriver{}, 16)
}

func TestDeriverIsDeterministic(t *testing.T) {
	require := require.New(t)

	owner := ids.GenerateTestShortID()
	d := HashDeriver{}

	require.Equal(d.SessionAddress(owner, 3), d.SessionAddress(owner, 3))
	require.NotEqual(d.SessionAddress(owner, 3), d.SessionAddress(owner, 4))
	require.NotEqual(
		d.SessionAddress(owner, 3),
		d.SessionAddress(ids.GenerateTestShortID(), 3),
	)
	require.NotEqual(d.SessionAddress(owner, 0), d.CounterAddress(owner))
}

func TestSessionRoundTrip(t *testing.T) {
	require := require.New(t)

	st := newTestState(t)
	owner := ids.GenerateTestShortID()
	sess := session.New(owner, 5)
	sess.SetSecondPlayer(ids.GenerateTestShortID())
	sess.Cells[4] = session.MarkA
	addr := st.Deriver().SessionAddress(owner, 5)

	_, err := st.GetSession(addr)
	require.ErrorIs(err, ErrSessionNotFound)

	require.NoError(st.PutSession(addr, sess))

	got, err := st.GetSession(addr)
	require.NoError(err)
	require.Equal(sess, got)

	// The returned record is a copy; mutating it must not leak back.
	got.Cells[0] = session.MarkB
	again, err := st.GetSession(addr)
	require.NoError(err)
	require.Equal(session.MarkEmpty, again.Cells[0])

	has, err := st.HasSession(addr)
	require.NoError(err)
	require.True(has)

	require.NoError(st.DeleteSession(addr))
	_, err = st.GetSession(addr)
	require.ErrorIs(err, ErrSessionNotFound)
}

func TestSessionSurvivesCacheEviction(t *testing.T) {
	require := require.New(t)

	st := New(memdb.New(), HashDeriver{}, 1)
	owner := ids.GenerateTestShortID()

	addr0 := st.Deriver().SessionAddress(owner, 0)
	addr1 := st.Deriver().SessionAddress(owner, 1)
	require.NoError(st.PutSession(addr0, session.New(owner, 0)))
	require.NoError(st.PutSession(addr1, session.New(owner, 1)))

	got, err := st.GetSession(addr0)
	require.NoError(err)
	require.Equal(uint64(0), got.SessionID)
}

func TestInvalidateAfterAbort(t *testing.T) {
	require := require.New(t)

	db := versiondb.New(memdb.New())
	st := New(db, HashDeriver{}, 16)
	owner := ids.GenerateTestShortID()
	addr := st.Deriver().SessionAddress(owner, 0)

	require.NoError(st.PutSession(addr, session.New(owner, 0)))

	// The write is cached but never committed. After the abort the
	// cache must not keep serving the discarded record.
	db.Abort()
	st.Invalidate()

	_, err := st.GetSession(addr)
	require.ErrorIs(err, ErrSessionNotFound)

	// A committed write survives invalidation through the database.
	require.NoError(st.PutSession(addr, session.New(owner, 0)))
	require.NoError(db.Commit())
	st.Invalidate()

	got, err := st.GetSession(addr)
	require.NoError(err)
	require.Zero(got.SessionID)
}

func TestNextSessionIDIsDense(t *testing.T) {
	require := require.New(t)

	st := newTestState(t)
	owner := ids.GenerateTestShortID()
	other := ids.GenerateTestShortID()

	count, err := st.GamesCreated(owner)
	require.NoError(err)
	require.Zero(count)

	for want := uint64(0); want < 4; want++ {
		got, err := st.NextSessionID(owner)
		require.NoError(err)
		require.Equal(want, got)
	}

	count, err = st.GamesCreated(owner)
	require.NoError(err)
	require.Equal(uint64(4), count)

	// Counters are per owner.
	got, err := st.NextSessionID(other)
	require.NoError(err)
	require.Zero(got)
}

func TestNextSessionIDOverflow(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	st := New(db, HashDeriver{}, 16)
	owner := ids.GenerateTestShortID()

	// Seed the counter at its maximum directly.
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.MaxUint64)
	require.NoError(db.Put(counterKey(st.Deriver().CounterAddress(owner)), buf))

	_, err := st.NextSessionID(owner)
	require.ErrorIs(err, session.ErrOverflow)

	// The counter is left untouched after the failed increment.
	count, err := st.GamesCreated(owner)
	require.NoError(err)
	require.Equal(uint64(math.MaxUint64), count)
}
