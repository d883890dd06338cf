// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gamevm

import (
	"fmt"
	"net/http"

	"github.com/luxfi/ids"

	"github.com/luxfi/gamevm/events"
	"github.com/luxfi/gamevm/session"
	"github.com/luxfi/gamevm/utils/json"
)

// Service provides the game VM JSON-RPC service.
type Service struct {
	vm *VM
}

// SessionView is the API rendering of one session record.
type SessionView struct {
	SessionID  json.Uint64               `json:"sessionId"`
	Addr       string                    `json:"addr"`
	PlayerA    string                    `json:"playerA"`
	PlayerB    string                    `json:"playerB,omitempty"`
	TurnHolder string                    `json:"turnHolder"`
	Winner     string                    `json:"winner,omitempty"`
	Cells      [session.BoardSize]string `json:"cells"`
	Status     string                    `json:"status"`
	Custody    string                    `json:"custody"`
	Executor   string                    `json:"executor,omitempty"`
}

func newSessionView(sess *session.Session, addr ids.ID) SessionView {
	view := SessionView{
		SessionID:  json.Uint64(sess.SessionID),
		Addr:       addr.String(),
		PlayerA:    sess.PlayerA.String(),
		TurnHolder: sess.TurnHolder.String(),
		Status:     sess.Status.String(),
		Custody:    sess.Custody.String(),
	}
	if sess.PlayerB != ids.ShortEmpty {
		view.PlayerB = sess.PlayerB.String()
	}
	if sess.Winner != ids.ShortEmpty {
		view.Winner = sess.Winner.String()
	}
	if sess.Custody == session.CustodyDelegated && sess.Executor != ids.EmptyNodeID {
		view.Executor = sess.Executor.String()
	}
	for i, cell := range sess.Cells {
		view.Cells[i] = cell.String()
	}
	return view
}

// CreateSessionArgs are the arguments for CreateSession.
type CreateSessionArgs struct {
	Owner string `json:"owner"`
}

// CreateSessionReply is the reply for CreateSession.
type CreateSessionReply struct {
	Session SessionView `json:"session"`
}

// CreateSession creates a new session owned by the caller.
func (s *Service) CreateSession(r *http.Request, args *CreateSessionArgs, reply *CreateSessionReply) error {
	owner, err := ids.ShortFromString(args.Owner)
	if err != nil {
		return fmt.Errorf("invalid owner: %w", err)
	}

	sess, addr, err := s.vm.CreateSession(owner)
	if err != nil {
		return err
	}

	reply.Session = newSessionView(sess, addr)
	return nil
}

// RegisterSecondPlayerArgs are the arguments for RegisterSecondPlayer.
type RegisterSecondPlayerArgs struct {
	Addr   string `json:"addr"`
	Player string `json:"player"`
}

// RegisterSecondPlayerReply is the reply for RegisterSecondPlayer.
type RegisterSecondPlayerReply struct {
	Session SessionView `json:"session"`
}

// RegisterSecondPlayer registers the caller as the second player.
func (s *Service) RegisterSecondPlayer(r *http.Request, args *RegisterSecondPlayerArgs, reply *RegisterSecondPlayerReply) error {
	addr, err := ids.FromString(args.Addr)
	if err != nil {
		return fmt.Errorf("invalid session addr: %w", err)
	}
	player, err := ids.ShortFromString(args.Player)
	if err != nil {
		return fmt.Errorf("invalid player: %w", err)
	}

	sess, err := s.vm.RegisterSecondPlayer(addr, player)
	if err != nil {
		return err
	}

	reply.Session = newSessionView(sess, addr)
	return nil
}

// RejoinSecondPlayerArgs are the arguments for RejoinSecondPlayer.
type RejoinSecondPlayerArgs struct {
	Addr   string `json:"addr"`
	Player string `json:"player"`
}

// RejoinSecondPlayerReply is the reply for RejoinSecondPlayer.
type RejoinSecondPlayerReply struct {
	Session SessionView `json:"session"`
}

// RejoinSecondPlayer confirms the caller is the registered second player.
func (s *Service) RejoinSecondPlayer(r *http.Request, args *RejoinSecondPlayerArgs, reply *RejoinSecondPlayerReply) error {
	addr, err := ids.FromString(args.Addr)
	if err != nil {
		return fmt.Errorf("invalid session addr: %w", err)
	}
	player, err := ids.ShortFromString(args.Player)
	if err != nil {
		return fmt.Errorf("invalid player: %w", err)
	}

	sess, err := s.vm.RejoinSecondPlayer(addr, player)
	if err != nil {
		return err
	}

	reply.Session = newSessionView(sess, addr)
	return nil
}

// MakeMoveArgs are the arguments for MakeMove.
type MakeMoveArgs struct {
	Addr     string `json:"addr"`
	Player   string `json:"player"`
	Position uint8  `json:"position"`
}

// MakeMoveReply is the reply for MakeMove.
type MakeMoveReply struct {
	Session SessionView `json:"session"`
}

// MakeMove places the caller's mark at the given position.
func (s *Service) MakeMove(r *http.Request, args *MakeMoveArgs, reply *MakeMoveReply) error {
	addr, err := ids.FromString(args.Addr)
	if err != nil {
		return fmt.Errorf("invalid session addr: %w", err)
	}
	player, err := ids.ShortFromString(args.Player)
	if err != nil {
		return fmt.Errorf("invalid player: %w", err)
	}

	sess, err := s.vm.MakeMove(addr, player, args.Position)
	if err != nil {
		return err
	}

	reply.Session = newSessionView(sess, addr)
	return nil
}

// DelegateArgs are the arguments for Delegate.
type DelegateArgs struct {
	Addr      string `json:"addr"`
	Requester string `json:"requester"`
	Executor  string `json:"executor,omitempty"`
}

// DelegateReply is the reply for Delegate.
type DelegateReply struct {
	Session SessionView `json:"session"`
}

// Delegate hands custody of the session to the fast layer.
func (s *Service) Delegate(r *http.Request, args *DelegateArgs, reply *DelegateReply) error {
	addr, err := ids.FromString(args.Addr)
	if err != nil {
		return fmt.Errorf("invalid session addr: %w", err)
	}
	requester, err := ids.ShortFromString(args.Requester)
	if err != nil {
		return fmt.Errorf("invalid requester: %w", err)
	}

	executor := ids.EmptyNodeID
	if args.Executor != "" {
		executor, err = ids.NodeIDFromString(args.Executor)
		if err != nil {
			return fmt.Errorf("invalid executor: %w", err)
		}
	}

	if err := s.vm.Delegate(requester, addr, executor); err != nil {
		return err
	}

	sess, err := s.vm.GetSession(addr)
	if err != nil {
		return err
	}
	reply.Session = newSessionView(sess, addr)
	return nil
}

// UndelegateAndCommitArgs are the arguments for UndelegateAndCommit.
type UndelegateAndCommitArgs struct {
	Addr      string `json:"addr"`
	Requester string `json:"requester"`
}

// UndelegateAndCommitReply is the reply for UndelegateAndCommit.
type UndelegateAndCommitReply struct {
	Session SessionView `json:"session"`
}

// UndelegateAndCommit commits the fast layer's copy back to the ledger
// and returns custody to it.
func (s *Service) UndelegateAndCommit(r *http.Request, args *UndelegateAndCommitArgs, reply *UndelegateAndCommitReply) error {
	addr, err := ids.FromString(args.Addr)
	if err != nil {
		return fmt.Errorf("invalid session addr: %w", err)
	}
	requester, err := ids.ShortFromString(args.Requester)
	if err != nil {
		return fmt.Errorf("invalid requester: %w", err)
	}

	if err := s.vm.UndelegateAndCommit(requester, addr); err != nil {
		return err
	}

	sess, err := s.vm.GetSession(addr)
	if err != nil {
		return err
	}
	reply.Session = newSessionView(sess, addr)
	return nil
}

// GetSessionArgs are the arguments for GetSession.
type GetSessionArgs struct {
	Addr string `json:"addr"`
}

// GetSessionReply is the reply for GetSession.
type GetSessionReply struct {
	Session SessionView `json:"session"`
}

// GetSession returns the current view of a session.
func (s *Service) GetSession(r *http.Request, args *GetSessionArgs, reply *GetSessionReply) error {
	addr, err := ids.FromString(args.Addr)
	if err != nil {
		return fmt.Errorf("invalid session addr: %w", err)
	}

	sess, err := s.vm.GetSession(addr)
	if err != nil {
		return err
	}

	reply.Session = newSessionView(sess, addr)
	return nil
}

// GetCounterArgs are the arguments for GetCounter.
type GetCounterArgs struct {
	Owner string `json:"owner"`
}

// GetCounterReply is the reply for GetCounter.
type GetCounterReply struct {
	Owner        string      `json:"owner"`
	GamesCreated json.Uint64 `json:"gamesCreated"`
}

// GetCounter returns how many sessions the owner has created.
func (s *Service) GetCounter(r *http.Request, args *GetCounterArgs, reply *GetCounterReply) error {
	owner, err := ids.ShortFromString(args.Owner)
	if err != nil {
		return fmt.Errorf("invalid owner: %w", err)
	}

	count, err := s.vm.GetCounter(owner)
	if err != nil {
		return err
	}

	reply.Owner = args.Owner
	reply.GamesCreated = json.Uint64(count)
	return nil
}

// RecentEventsArgs are the arguments for RecentEvents.
type RecentEventsArgs struct{}

// EventView is the API rendering of one retained event.
type EventView struct {
	Kind  string       `json:"kind"`
	Event events.Event `json:"event"`
}

// RecentEventsReply is the reply for RecentEvents.
type RecentEventsReply struct {
	Events []EventView `json:"events"`
}

// RecentEvents returns the retained event log, oldest first.
func (s *Service) RecentEvents(r *http.Request, args *RecentEventsArgs, reply *RecentEventsReply) error {
	recent := s.vm.RecentEvents()
	reply.Events = make([]EventView, len(recent))
	for i, ev := range recent {
		reply.Events[i] = EventView{
			Kind:  ev.Kind(),
			Event: ev,
		}
	}
	return nil
}

// HealthArgs are the arguments for Health.
type HealthArgs struct{}

// HealthReply is the reply for Health.
type HealthReply struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`
}

// Health reports whether the VM is serving.
func (s *Service) Health(r *http.Request, args *HealthArgs, reply *HealthReply) error {
	s.vm.lock.RLock()
	defer s.vm.lock.RUnlock()

	reply.Healthy = !s.vm.shuttingDown
	reply.Version = Version
	return nil
}
