// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
)

func TestLogBounded(t *testing.T) {
	require := require.New(t)

	l := NewLog(2)
	l.Emit(&SessionCreated{SessionID: 0})
	l.Emit(&MoveMade{SessionID: 0, Position: 1})
	l.Emit(&MoveMade{SessionID: 0, Position: 2})

	recent := l.Recent()
	require.Len(recent, 2)

	// The oldest entry was dropped.
	first, ok := recent[0].(*MoveMade)
	require.True(ok)
	require.Equal(uint8(1), first.Position)
}

func TestLogDisabled(t *testing.T) {
	l := NewLog(0)
	l.Emit(&GameDraw{SessionID: 1})
	require.Empty(t, l.Recent())
}

func TestTee(t *testing.T) {
	require := require.New(t)

	a := NewLog(8)
	b := NewLog(8)
	tee := Tee{a, b, NoopEmitter{}}

	winner := ids.GenerateTestShortID()
	tee.Emit(&GameWon{Winner: winner, SessionID: 2})

	require.Len(a.Recent(), 1)
	require.Len(b.Recent(), 1)
	require.Equal(KindGameWon, a.Recent()[0].Kind())
}
