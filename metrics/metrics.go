// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"errors"

	"github.com/luxfi/metric"
)

var _ Metrics = (*metricsImpl)(nil)

type Metrics interface {
	metric.APIInterceptor

	IncSessionsCreated()
	IncMovesApplied()
	IncGamesWon()
	IncGamesDrawn()
	IncDelegations()
	IncCommits()
	IncOpRejected()
}

type metricsImpl struct {
	numSessionsCreated metric.Counter
	numMovesApplied    metric.Counter
	numGamesWon        metric.Counter
	numGamesDrawn      metric.Counter
	numDelegations     metric.Counter
	numCommits         metric.Counter
	numOpRejected      metric.Counter

	metric.APIInterceptor
}

func (m *metricsImpl) IncSessionsCreated() { m.numSessionsCreated.Inc() }
func (m *metricsImpl) IncMovesApplied()    { m.numMovesApplied.Inc() }
func (m *metricsImpl) IncGamesWon()        { m.numGamesWon.Inc() }
func (m *metricsImpl) IncGamesDrawn()      { m.numGamesDrawn.Inc() }
func (m *metricsImpl) IncDelegations()     { m.numDelegations.Inc() }
func (m *metricsImpl) IncCommits()         { m.numCommits.Inc() }
func (m *metricsImpl) IncOpRejected()      { m.numOpRejected.Inc() }

func New(registerer metric.Registerer) (Metrics, error) {
	registry, ok := registerer.(metric.Registry)
	if !ok {
		return nil, errors.New("registerer must implement metric.Registry")
	}

	m := &metricsImpl{}

	m.numSessionsCreated = metric.NewCounter(metric.CounterOpts{
		Name: "sessions_created",
		Help: "Number of sessions created",
	})
	m.numMovesApplied = metric.NewCounter(metric.CounterOpts{
		Name: "moves_applied",
		Help: "Number of moves applied across all sessions",
	})
	m.numGamesWon = metric.NewCounter(metric.CounterOpts{
		Name: "games_won",
		Help: "Number of sessions that finished with a winner",
	})
	m.numGamesDrawn = metric.NewCounter(metric.CounterOpts{
		Name: "games_drawn",
		Help: "Number of sessions that finished drawn",
	})
	m.numDelegations = metric.NewCounter(metric.CounterOpts{
		Name: "delegations",
		Help: "Number of custody transfers to the fast layer",
	})
	m.numCommits = metric.NewCounter(metric.CounterOpts{
		Name: "commits",
		Help: "Number of custody returns committed to the ledger",
	})
	m.numOpRejected = metric.NewCounter(metric.CounterOpts{
		Name: "op_rejected",
		Help: "Number of operations rejected by a precondition check",
	})

	apiRequestMetric, err := metric.NewAPIInterceptor(registry)
	m.APIInterceptor = apiRequestMetric
	// Metrics are self-registering when created with NewCounter.
	return m, err
}
