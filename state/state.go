// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state manages persistent records for the game VM: session
// records and per-owner session counters, both stored under deterministic
// derived addresses. One State instance backs one execution context, so
// the durable ledger and the fast layer each get their own.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/cache"
	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/math"

	"github.com/luxfi/gamevm/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")

	// Database prefixes
	sessionPrefix = []byte("session:")
	counterPrefix = []byte("counter:")

	// Address derivation seeds, one per record family.
	boardSeed   = []byte("board")
	counterSeed = []byte("player_games")
)

// Deriver computes the deterministic storage address of each record from
// its fixed seed inputs. The derivation contract guarantees one unique
// slot per logical entity; it is pluggable because the host may supply
// its own scheme.
type Deriver interface {
	// SessionAddress derives the address of the session record for
	// (owner, sessionID).
	SessionAddress(owner ids.ShortID, sessionID uint64) ids.ID
	// CounterAddress derives the address of owner's session counter.
	CounterAddress(owner ids.ShortID) ids.ID
}

// HashDeriver derives addresses by hashing a family seed together with
// the record's identifying inputs.
type HashDeriver struct{}

func (HashDeriver) SessionAddress(owner ids.ShortID, sessionID uint64) ids.ID {
	seed := make([]byte, 0, len(boardSeed)+len(owner)+8)
	seed = append(seed, boardSeed...)
	seed = append(seed, owner[:]...)
	seed = binary.LittleEndian.AppendUint64(seed, sessionID)
	addr, _ := ids.ToID(hash.ComputeHash256(seed))
	return addr
}

func (HashDeriver) CounterAddress(owner ids.ShortID) ids.ID {
	seed := make([]byte, 0, len(counterSeed)+len(owner))
	seed = append(seed, counterSeed...)
	seed = append(seed, owner[:]...)
	addr, _ := ids.ToID(hash.ComputeHash256(seed))
	return addr
}

// State is a database-backed store of session and counter records.
type State struct {
	mu      sync.RWMutex
	db      database.Database
	deriver Deriver

	sessions *cache.LRU[ids.ID, *session.Session]
}

// New creates a State over db. A nil deriver selects HashDeriver.
func New(db database.Database, deriver Deriver, cacheSize int) *State {
	if deriver == nil {
		deriver = HashDeriver{}
	}
	if cacheSize <= 0 {
		cacheSize = 1
	}
	return &State{
		db:       db,
		deriver:  deriver,
		sessions: cache.NewLRU[ids.ID, *session.Session](cacheSize),
	}
}

// Deriver returns the address derivation scheme in use.
func (s *State) Deriver() Deriver {
	return s.deriver
}

// GetSession returns a copy of the session stored at addr. Callers mutate
// the copy and persist it with PutSession once every check passed.
func (s *State) GetSession(addr ids.ID) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cached, ok := s.sessions.Get(addr); ok {
		return cached.Copy(), nil
	}

	data, err := s.db.Get(sessionKey(addr))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	sess := &session.Session{}
	if _, err := Codec.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", addr, err)
	}

	s.sessions.Put(addr, sess.Copy())
	return sess, nil
}

// HasSession reports whether a session record exists at addr.
func (s *State) HasSession(addr ids.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions.Get(addr); ok {
		return true, nil
	}
	return s.db.Has(sessionKey(addr))
}

// PutSession persists sess at addr.
func (s *State) PutSession(addr ids.ID, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := Codec.Marshal(CodecVersion, sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", addr, err)
	}
	if err := s.db.Put(sessionKey(addr), data); err != nil {
		return err
	}

	s.sessions.Put(addr, sess.Copy())
	return nil
}

// SessionBytes returns the raw stored encoding of the session at addr.
func (s *State) SessionBytes(addr ids.ID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.db.Get(sessionKey(addr))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return data, err
}

// Invalidate drops every cached record. Callers aborting a batch whose
// writes already reached the cache use it to keep reads coherent with
// the database.
func (s *State) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Flush()
}

// DeleteSession removes the session record at addr.
func (s *State) DeleteSession(addr ids.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions.Evict(addr)
	return s.db.Delete(sessionKey(addr))
}

// GamesCreated returns owner's session counter; a missing record reads
// as zero, so identifiers are dense and 0-based per owner.
func (s *State) GamesCreated(owner ids.ShortID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gamesCreated(owner)
}

// NextSessionID returns the identifier for owner's next session and
// advances the counter by exactly one. The increment is checked, not
// wrapped: reaching the 64-bit maximum fails with session.ErrOverflow.
func (s *State) NextSessionID(owner ids.ShortID) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.gamesCreated(owner)
	if err != nil {
		return 0, err
	}

	next, err := math.Add64(current, 1)
	if err != nil {
		return 0, session.ErrOverflow
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := s.db.Put(counterKey(s.deriver.CounterAddress(owner)), buf); err != nil {
		return 0, err
	}
	return current, nil
}

func (s *State) gamesCreated(owner ids.ShortID) (uint64, error) {
	data, err := s.db.Get(counterKey(s.deriver.CounterAddress(owner)))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt counter record for %s", owner)
	}
	return binary.BigEndian.Uint64(data), nil
}

func sessionKey(addr ids.ID) []byte {
	return append(sessionPrefix, addr[:]...)
}

func counterKey(addr ids.ID) []byte {
	return append(counterPrefix, addr[:]...)
}
