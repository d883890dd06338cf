// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gamevm

import (
	"encoding/json"
	"fmt"

	"github.com/luxfi/ids"
)

// Genesis declares sessions that exist from block zero. Each entry
// creates one session for its owner; a second player may be registered
// up front.
type Genesis struct {
	Sessions []GenesisSession `json:"sessions"`
}

// GenesisSession is one pre-created session.
type GenesisSession struct {
	Owner        string `json:"owner"`
	SecondPlayer string `json:"secondPlayer,omitempty"`
}

// parseGenesis creates the declared sessions on the ledger. It runs
// before the VM serves requests, so the writes commit as one batch.
func (vm *VM) parseGenesis(genesisBytes []byte) error {
	genesis := Genesis{}
	if err := json.Unmarshal(genesisBytes, &genesis); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}

	for i, gs := range genesis.Sessions {
		owner, err := ids.ShortFromString(gs.Owner)
		if err != nil {
			return fmt.Errorf("genesis session %d: invalid owner: %w", i, err)
		}

		_, addr, err := vm.ledgerExec.createSession(owner)
		if err != nil {
			vm.abort()
			return fmt.Errorf("genesis session %d: %w", i, err)
		}

		if gs.SecondPlayer != "" {
			second, err := ids.ShortFromString(gs.SecondPlayer)
			if err != nil {
				vm.abort()
				return fmt.Errorf("genesis session %d: invalid second player: %w", i, err)
			}
			if _, err := vm.ledgerExec.registerSecondPlayer(addr, second); err != nil {
				vm.abort()
				return fmt.Errorf("genesis session %d: %w", i, err)
			}
		}
	}

	vm.log.Info("genesis applied", "sessions", len(genesis.Sessions))
	return vm.db.Commit()
}
