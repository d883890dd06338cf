// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gamevm

import (
	"github.com/luxfi/log"

	"github.com/luxfi/gamevm/config"
)

// Factory creates game VM instances.
type Factory struct {
	config.Config
}

// New creates a new game VM instance.
func (f *Factory) New(logger log.Logger) (interface{}, error) {
	if f.Config.SessionCacheSize == 0 {
		f.Config = config.DefaultConfig()
	}

	if err := f.Config.Validate(); err != nil {
		return nil, err
	}

	return &VM{
		Config: f.Config,
		log:    logger,
	}, nil
}

// NewFactory creates a game VM factory with the given configuration.
func NewFactory(cfg config.Config) *Factory {
	return &Factory{Config: cfg}
}

// NewDefaultFactory creates a game VM factory with default configuration.
func NewDefaultFactory() *Factory {
	return &Factory{Config: config.DefaultConfig()}
}
