// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gamevm implements a virtual machine hosting two-player
// board-game sessions. Session records live on a durable ledger; custody
// of an individual session can be delegated to a fast execution layer
// and later committed back, with the same rules enforced on both sides.
package gamevm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/rpc/v2"

	consensuscore "github.com/luxfi/consensus/core"
	consensusinterfaces "github.com/luxfi/consensus/core/interfaces"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/pubsub"
	"github.com/luxfi/version"
	"github.com/luxfi/warp"

	"github.com/luxfi/gamevm/bridge"
	"github.com/luxfi/gamevm/config"
	"github.com/luxfi/gamevm/events"
	"github.com/luxfi/gamevm/metrics"
	"github.com/luxfi/gamevm/session"
	"github.com/luxfi/gamevm/state"
	"github.com/luxfi/gamevm/utils/json"
	"github.com/luxfi/gamevm/utils/timer/mockable"
)

const (
	// Version of the game VM
	Version = "1.0.0"

	// VMID is the unique identifier for the game VM
	VMID = "gamevm"
)

var errVMShutdown = errors.New("VM is shutting down")

// VM hosts game sessions over two execution contexts. The durable ledger
// is the system of record; the fast layer serves sessions whose custody
// was delegated to it. Every operation runs under the VM lock and either
// commits both version layers or aborts both.
type VM struct {
	config.Config

	// Core components
	ctx        context.Context
	cancel     context.CancelFunc
	log        log.Logger
	registerer metric.Registerer
	metrics    metrics.Metrics
	pubsub     *pubsub.Server

	// Storage. db versions the host-provided base; fastDB versions an
	// in-memory store standing in for the fast execution layer.
	baseDB database.Database
	db     *versiondb.Database
	fastDB *versiondb.Database

	ledger *state.State
	fast   *state.State

	ledgerExec *executor
	fastExec   *executor
	bridge     *bridge.Bridge

	// Event log retained when IndexEvents is set.
	eventLog *events.Log

	defaultExecutor ids.NodeID

	// HTTP service
	rpcServer *rpc.Server

	// Consensus plumbing
	toEngine  chan<- consensuscore.Message
	appSender warp.Sender

	// Lifecycle
	lock         sync.RWMutex
	shuttingDown bool

	// Clock
	clock mockable.Clock
}

// Initialize initializes the game VM.
func (vm *VM) Initialize(
	ctx context.Context,
	chainCtx interface{},
	db database.Database,
	genesisBytes []byte,
	upgradeBytes []byte,
	configBytes []byte,
	toEngine chan<- consensuscore.Message,
	fxs []*consensuscore.Fx,
	appSender warp.Sender,
) error {
	vm.ctx, vm.cancel = context.WithCancel(ctx)
	if vm.log == nil {
		vm.log = log.NoLog{}
	}

	cfg, err := config.ParseConfig(configBytes)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	vm.Config = cfg
	if err := vm.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if vm.Config.DefaultExecutor != "" {
		vm.defaultExecutor, err = ids.NodeIDFromString(vm.Config.DefaultExecutor)
		if err != nil {
			return fmt.Errorf("invalid default executor: %w", err)
		}
	}

	vm.registerer = metric.NewRegistry()
	vm.metrics, err = metrics.New(vm.registerer)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	vm.baseDB = db
	vm.db = versiondb.New(db)
	vm.fastDB = versiondb.New(memdb.New())
	vm.ledger = state.New(vm.db, state.HashDeriver{}, vm.Config.SessionCacheSize)
	vm.fast = state.New(vm.fastDB, state.HashDeriver{}, vm.Config.SessionCacheSize)

	vm.pubsub = pubsub.New(vm.log)

	emitter := events.Tee{pubsubEmitter{server: vm.pubsub}}
	if vm.Config.IndexEvents {
		vm.eventLog = events.NewLog(vm.Config.EventLogCapacity)
		emitter = append(emitter, vm.eventLog)
	}

	vm.ledgerExec = &executor{
		log:                 vm.log,
		state:               vm.ledger,
		emitter:             emitter,
		metrics:             vm.metrics,
		local:               true,
		maxSessionsPerOwner: vm.Config.MaxSessionsPerOwner,
	}
	vm.fastExec = &executor{
		log:                 vm.log,
		state:               vm.fast,
		emitter:             emitter,
		metrics:             vm.metrics,
		maxSessionsPerOwner: vm.Config.MaxSessionsPerOwner,
	}
	vm.bridge = bridge.New(vm.log, vm.ledger, vm.fast)

	vm.toEngine = toEngine
	vm.appSender = appSender

	if len(genesisBytes) > 0 {
		if err := vm.parseGenesis(genesisBytes); err != nil {
			return fmt.Errorf("failed to parse genesis: %w", err)
		}
	}

	if err := vm.initializeHTTPHandlers(); err != nil {
		return fmt.Errorf("failed to initialize HTTP handlers: %w", err)
	}

	vm.log.Info("game VM initialized",
		"version", Version,
		"sessionCacheSize", vm.Config.SessionCacheSize,
		"indexEvents", vm.Config.IndexEvents,
	)
	return nil
}

// commit settles both version layers after an operation: every write of
// the operation lands, or none does.
func (vm *VM) commit(opErr error) error {
	if opErr != nil {
		vm.abort()
		vm.metrics.IncOpRejected()
		return opErr
	}
	if err := vm.db.Commit(); err != nil {
		vm.abort()
		return err
	}
	if err := vm.fastDB.Commit(); err != nil {
		vm.abort()
		return err
	}
	return nil
}

// abort discards pending writes on both layers. Writes of the failed
// operation may already sit in the store caches, so those are dropped
// with them.
func (vm *VM) abort() {
	vm.db.Abort()
	vm.fastDB.Abort()
	vm.ledger.Invalidate()
	vm.fast.Invalidate()
}

// routeExecutor selects which side serves mutations of the session at
// addr, from the custody recorded on the ledger.
func (vm *VM) routeExecutor(addr ids.ID) (*executor, error) {
	sess, err := vm.ledger.GetSession(addr)
	if err != nil {
		return nil, err
	}
	if sess.Custody == session.CustodyDelegated {
		return vm.fastExec, nil
	}
	return vm.ledgerExec, nil
}

// CreateSession creates a new session owned by owner. New sessions are
// always created on the ledger, in local custody.
func (vm *VM) CreateSession(owner ids.ShortID) (*session.Session, ids.ID, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.shuttingDown {
		return nil, ids.Empty, errVMShutdown
	}

	sess, addr, err := vm.ledgerExec.createSession(owner)
	if err := vm.commit(err); err != nil {
		return nil, ids.Empty, err
	}
	return sess, addr, nil
}

// RegisterSecondPlayer registers candidate as the second player of the
// session at addr.
func (vm *VM) RegisterSecondPlayer(addr ids.ID, candidate ids.ShortID) (*session.Session, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.shuttingDown {
		return nil, errVMShutdown
	}

	exec, err := vm.routeExecutor(addr)
	if err != nil {
		return nil, err
	}
	sess, err := exec.registerSecondPlayer(addr, candidate)
	if err := vm.commit(err); err != nil {
		return nil, err
	}
	return sess, nil
}

// RejoinSecondPlayer confirms caller as the registered second player of
// the session at addr without modifying it.
func (vm *VM) RejoinSecondPlayer(addr ids.ID, caller ids.ShortID) (*session.Session, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if vm.shuttingDown {
		return nil, errVMShutdown
	}

	exec, err := vm.routeExecutor(addr)
	if err != nil {
		return nil, err
	}
	return exec.rejoinSecondPlayer(addr, caller)
}

// MakeMove places caller's mark at position in the session at addr. The
// move is served by whichever side holds custody.
func (vm *VM) MakeMove(addr ids.ID, caller ids.ShortID, position uint8) (*session.Session, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.shuttingDown {
		return nil, errVMShutdown
	}

	exec, err := vm.routeExecutor(addr)
	if err != nil {
		return nil, err
	}
	sess, err := exec.makeMove(addr, caller, position)
	if err := vm.commit(err); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delegate hands custody of the session at addr to the fast layer. An
// executor pins the session to that node; when none is named the
// configured default applies, and with no default either the session is
// delegated unpinned and the fast layer chooses.
func (vm *VM) Delegate(requester ids.ShortID, addr ids.ID, executor ids.NodeID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.shuttingDown {
		return errVMShutdown
	}

	if executor == ids.EmptyNodeID {
		executor = vm.defaultExecutor
	}

	err := vm.bridge.Delegate(requester, addr, executor)
	if err := vm.commit(err); err != nil {
		return err
	}
	vm.metrics.IncDelegations()
	return nil
}

// UndelegateAndCommit flushes the fast layer's copy of the session at
// addr back to the ledger and returns custody to it.
func (vm *VM) UndelegateAndCommit(requester ids.ShortID, addr ids.ID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.shuttingDown {
		return errVMShutdown
	}

	err := vm.bridge.UndelegateAndCommit(requester, addr)
	if err := vm.commit(err); err != nil {
		return err
	}
	vm.metrics.IncCommits()
	return nil
}

// GetSession returns the current view of the session at addr: the fast
// layer's working copy while delegated, the ledger record otherwise.
func (vm *VM) GetSession(addr ids.ID) (*session.Session, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	sess, err := vm.ledger.GetSession(addr)
	if err != nil {
		return nil, err
	}
	if sess.Custody == session.CustodyDelegated {
		return vm.fast.GetSession(addr)
	}
	return sess, nil
}

// GetCounter returns how many sessions owner has created.
func (vm *VM) GetCounter(owner ids.ShortID) (uint64, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.ledger.GamesCreated(owner)
}

// RecentEvents returns the retained event log, newest last. It is empty
// unless IndexEvents is configured.
func (vm *VM) RecentEvents() []events.Event {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if vm.eventLog == nil {
		return nil
	}
	return vm.eventLog.Recent()
}

// SetState sets the VM state.
func (vm *VM) SetState(ctx context.Context, s consensusinterfaces.State) error {
	vm.log.Info("game VM state transition", "state", fmt.Sprintf("%v", s))
	return nil
}

// Shutdown shuts down the VM.
func (vm *VM) Shutdown(ctx context.Context) error {
	vm.lock.Lock()
	vm.shuttingDown = true
	vm.lock.Unlock()

	vm.log.Info("shutting down game VM")

	if vm.cancel != nil {
		vm.cancel()
	}

	if vm.db != nil {
		if err := vm.db.Close(); err != nil {
			vm.log.Error("failed to close ledger database", "error", err)
		}
	}
	if vm.fastDB != nil {
		if err := vm.fastDB.Close(); err != nil {
			vm.log.Error("failed to close fast layer database", "error", err)
		}
	}

	vm.log.Info("game VM shutdown complete")
	return nil
}

// Version returns the VM version.
func (vm *VM) Version(ctx context.Context) (string, error) {
	return Version, nil
}

// Connected handles node connection events.
func (vm *VM) Connected(ctx context.Context, nodeID ids.NodeID, nodeVersion *version.Application) error {
	vm.log.Debug("node connected", "nodeID", nodeID, "version", nodeVersion)
	return nil
}

// Disconnected handles node disconnection events.
func (vm *VM) Disconnected(ctx context.Context, nodeID ids.NodeID) error {
	vm.log.Debug("node disconnected", "nodeID", nodeID)
	return nil
}

// HealthCheck returns VM health status.
func (vm *VM) HealthCheck(ctx context.Context) (interface{}, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return map[string]interface{}{
		"healthy":     !vm.shuttingDown,
		"version":     Version,
		"indexEvents": vm.Config.IndexEvents,
		"time":        vm.clock.UnixTime(),
	}, nil
}

// CreateHandlers returns HTTP handlers for the VM.
func (vm *VM) CreateHandlers(ctx context.Context) (map[string]http.Handler, error) {
	return map[string]http.Handler{
		"/rpc":    vm.rpcServer,
		"/events": vm.pubsub,
	}, nil
}

// CreateStaticHandlers returns static HTTP handlers.
func (vm *VM) CreateStaticHandlers(ctx context.Context) (map[string]http.Handler, error) {
	return nil, nil
}

func (vm *VM) initializeHTTPHandlers() error {
	vm.rpcServer = rpc.NewServer()

	codec := json.NewCodec()
	vm.rpcServer.RegisterCodec(codec, "application/json")
	vm.rpcServer.RegisterCodec(codec, "application/json;charset=UTF-8")
	vm.rpcServer.RegisterInterceptFunc(vm.metrics.InterceptRequest)
	vm.rpcServer.RegisterAfterFunc(vm.metrics.AfterRequest)
	return vm.rpcServer.RegisterService(&Service{vm: vm}, VMID)
}
