// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events defines the domain events a session operation can emit.
// Events are an append-only side channel consumed by external observers;
// a rejected operation emits nothing.
package events

import (
	"sync"

	"github.com/luxfi/ids"
)

// Event kinds.
const (
	KindSessionCreated = "sessionCreated"
	KindMoveMade       = "moveMade"
	KindGameWon        = "gameWon"
	KindGameDraw       = "gameDraw"
)

// Event is one emitted domain event. Participants reports the player
// addresses the event concerns, for subscriber-side address filtering.
type Event interface {
	Kind() string
	Participants() []ids.ShortID
}

// SessionCreated is emitted once per created session.
type SessionCreated struct {
	SessionID uint64      `json:"sessionId"`
	Owner     ids.ShortID `json:"owner"`
}

func (SessionCreated) Kind() string { return KindSessionCreated }

func (e SessionCreated) Participants() []ids.ShortID { return []ids.ShortID{e.Owner} }

// MoveMade is emitted for every applied move, including the finishing
// one. Opponent is carried for subscriber filtering only; both players
// of a session see its moves.
type MoveMade struct {
	Player    ids.ShortID `json:"player"`
	Position  uint8       `json:"position"`
	SessionID uint64      `json:"sessionId"`
	Opponent  ids.ShortID `json:"-"`
}

func (MoveMade) Kind() string { return KindMoveMade }

func (e MoveMade) Participants() []ids.ShortID {
	if e.Opponent == ids.ShortEmpty {
		return []ids.ShortID{e.Player}
	}
	return []ids.ShortID{e.Player, e.Opponent}
}

// GameWon is emitted on the move that completes a winning triple.
type GameWon struct {
	Winner    ids.ShortID `json:"winner"`
	SessionID uint64      `json:"sessionId"`
	Loser     ids.ShortID `json:"-"`
}

func (GameWon) Kind() string { return KindGameWon }

func (e GameWon) Participants() []ids.ShortID {
	if e.Loser == ids.ShortEmpty {
		return []ids.ShortID{e.Winner}
	}
	return []ids.ShortID{e.Winner, e.Loser}
}

// GameDraw is emitted on the move that fills the board with no winner.
type GameDraw struct {
	SessionID uint64        `json:"sessionId"`
	Players   []ids.ShortID `json:"-"`
}

func (GameDraw) Kind() string { return KindGameDraw }

func (e GameDraw) Participants() []ids.ShortID { return e.Players }

// Emitter receives events as operations apply. Implementations must not
// fail; emission is decoupled from the state mutation itself.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// Log is a bounded append-only record of recent events, kept for audit
// and replay. Once cap is exceeded the oldest entries are dropped.
type Log struct {
	mu     sync.RWMutex
	cap    int
	events []Event
}

// NewLog returns a Log retaining at most cap events; cap <= 0 disables
// retention entirely.
func NewLog(cap int) *Log {
	return &Log{cap: cap}
}

func (l *Log) Emit(ev Event) {
	if l.cap <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	if len(l.events) > l.cap {
		l.events = l.events[len(l.events)-l.cap:]
	}
}

// Recent returns a copy of the retained events, oldest first.
func (l *Log) Recent() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Tee fans one event out to several emitters.
type Tee []Emitter

func (t Tee) Emit(ev Event) {
	for _, e := range t {
		e.Emit(ev)
	}
}
