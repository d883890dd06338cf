// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge moves session custody between the durable ledger and
// the fast layer. Custody is a field of the session record itself, so a
// transfer is a single record write on each side and inherits the
// surrounding transaction's atomicity.
package bridge

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/gamevm/authz"
	"github.com/luxfi/gamevm/session"
	"github.com/luxfi/gamevm/state"
)

// Bridge transfers sessions between the two stores. The ledger store is
// authoritative for custody; the fast store holds working copies of
// delegated sessions.
type Bridge struct {
	log    log.Logger
	ledger *state.State
	fast   *state.State
}

func New(logger log.Logger, ledger, fast *state.State) *Bridge {
	return &Bridge{
		log:    logger,
		ledger: ledger,
		fast:   fast,
	}
}

// Delegate hands custody of the session at addr to the fast layer,
// pinned to executor when one is named. The session keeps serving reads
// from the ledger, but mutations are routed to the fast layer until
// custody returns. Delegating an already delegated session is a no-op.
func (b *Bridge) Delegate(requester ids.ShortID, addr ids.ID, executor ids.NodeID) error {
	sess, err := b.ledger.GetSession(addr)
	if err != nil {
		return err
	}
	derived := b.ledger.Deriver().SessionAddress(sess.PlayerA, sess.SessionID)
	if err := authz.CanTransferCustody(sess, requester, addr, derived); err != nil {
		return err
	}
	if sess.Custody == session.CustodyDelegated {
		b.log.Debug("session already delegated",
			"addr", addr,
			"executor", sess.Executor,
		)
		return nil
	}

	sess.Custody = session.CustodyDelegated
	sess.Executor = executor

	// The ledger copy records who holds custody; the fast copy is the
	// working record that subsequent moves mutate.
	if err := b.ledger.PutSession(addr, sess); err != nil {
		return err
	}
	if err := b.fast.PutSession(addr, sess); err != nil {
		return err
	}

	b.log.Info("session delegated",
		"addr", addr,
		"sessionID", sess.SessionID,
		"executor", executor,
	)
	return nil
}

// UndelegateAndCommit flushes the fast layer's working copy of the
// session at addr back to the ledger and returns custody to it, in one
// record write. Undelegating a session already in local custody is a
// no-op.
func (b *Bridge) UndelegateAndCommit(requester ids.ShortID, addr ids.ID) error {
	ledgerCopy, err := b.ledger.GetSession(addr)
	if err != nil {
		return err
	}
	derived := b.ledger.Deriver().SessionAddress(ledgerCopy.PlayerA, ledgerCopy.SessionID)
	if err := authz.CanTransferCustody(ledgerCopy, requester, addr, derived); err != nil {
		return err
	}
	if ledgerCopy.Custody == session.CustodyLocal {
		b.log.Debug("session already in local custody", "addr", addr)
		return nil
	}

	sess, err := b.fast.GetSession(addr)
	if err != nil {
		return err
	}

	sess.Custody = session.CustodyLocal
	sess.Executor = ids.EmptyNodeID

	if err := b.ledger.PutSession(addr, sess); err != nil {
		return err
	}
	if err := b.fast.DeleteSession(addr); err != nil {
		return err
	}

	b.log.Info("session committed and undelegated",
		"addr", addr,
		"sessionID", sess.SessionID,
	)
	return nil
}
