// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gamevm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
	"github.com/luxfi/pubsub"

	"github.com/luxfi/gamevm/events"
)

type mockFilter struct {
	addr []byte
}

func (f *mockFilter) Check(addr []byte) bool {
	return bytes.Equal(addr, f.addr)
}

func TestFilter(t *testing.T) {
	require := require.New(t)

	player := ids.ShortID{1}
	opponent := ids.ShortID{2}
	stranger := ids.ShortID{3}

	ev := &events.MoveMade{
		Player:    player,
		Position:  4,
		SessionID: 0,
		Opponent:  opponent,
	}

	// A subscriber filtering on either side of the game sees the move;
	// outsiders do not.
	parser := NewPubSubFilterer(ev)
	fr, delivered := parser.Filter([]pubsub.Filter{
		&mockFilter{addr: player[:]},
		&mockFilter{addr: opponent[:]},
		&mockFilter{addr: stranger[:]},
	})
	require.Equal([]bool{true, true, false}, fr)
	require.Equal(ev, delivered)
}

func TestFilterGameEnd(t *testing.T) {
	require := require.New(t)

	winner := ids.ShortID{1}
	loser := ids.ShortID{2}

	parser := NewPubSubFilterer(&events.GameWon{
		Winner:    winner,
		SessionID: 1,
		Loser:     loser,
	})
	fr, _ := parser.Filter([]pubsub.Filter{&mockFilter{addr: loser[:]}})
	require.Equal([]bool{true}, fr)

	parser = NewPubSubFilterer(&events.GameDraw{
		SessionID: 2,
		Players:   []ids.ShortID{winner, loser},
	})
	fr, _ = parser.Filter([]pubsub.Filter{&mockFilter{addr: loser[:]}})
	require.Equal([]bool{true}, fr)
}

func TestFilterNoParticipants(t *testing.T) {
	require := require.New(t)

	player := ids.ShortID{1}
	parser := NewPubSubFilterer(&events.GameDraw{SessionID: 3})
	fr, _ := parser.Filter([]pubsub.Filter{&mockFilter{addr: player[:]}})
	require.Equal([]bool{false}, fr)
}
