// Package worker hosts the wallet capability module behind an actor
// goroutine. Callers never touch the module or the session directly: every
// operation is a command sent to the actor and answered through a Pending.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lightning-worker/go-backend/internal/capability"
	"lightning-worker/go-backend/internal/contracts"
	"lightning-worker/go-backend/internal/observability"
)

type Options struct {
	Logger  *slog.Logger
	Metrics *observability.BridgeMetrics
}

type command struct {
	op  Op
	id  string
	run func(s *Session)
	// fail completes the command's Pending when it can no longer run.
	fail func(error)
}

type Bridge struct {
	runtime capability.Runtime
	logger  *slog.Logger
	metrics *observability.BridgeMetrics

	ctx    context.Context
	cancel context.CancelFunc

	box       *mailbox
	done      chan struct{}
	closeOnce sync.Once
	running   sync.WaitGroup

	session Session
}

// New starts the actor goroutine. Close must be called to stop it.
func New(runtime capability.Runtime, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		runtime: runtime,
		logger:  logger.With("component", "session_bridge"),
		metrics: opts.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		box:     newMailbox(),
		done:    make(chan struct{}),
	}
	b.metrics.SetSessionState(Uninitialized.String())
	go b.loop()
	return b
}

func (b *Bridge) loop() {
	defer close(b.done)
	for range b.box.signal {
		for {
			batch, closed := b.box.take()
			if len(batch) == 0 {
				if closed {
					return
				}
				break
			}
			for _, cmd := range batch {
				b.handle(cmd)
			}
		}
	}
}

func (b *Bridge) handle(cmd command) {
	before := b.session.state
	cmd.run(&b.session)
	if after := b.session.state; after != before {
		b.metrics.SetSessionState(after.String())
		b.logger.Info("session state changed",
			"operation", string(cmd.op),
			"request_id", cmd.id,
			"from", before.String(),
			"to", after.String(),
		)
	}
}

func (b *Bridge) submit(cmd command) {
	if !b.box.push(cmd) {
		cmd.fail(ErrBridgeClosed)
	}
}

// Close stops accepting commands, lets queued ones finish, waits for
// operations already running and stops the actor.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.box.close()
		<-b.done
		b.running.Wait()
		b.cancel()
	})
}

// spawn runs a gated operation off the actor goroutine.
func (b *Bridge) spawn(fn func()) {
	b.running.Add(1)
	go func() {
		defer b.running.Done()
		fn()
	}()
}

func track[T any](b *Bridge, op Op) *Pending[T] {
	p := newPending[T](op)
	finish := b.metrics.Begin(string(op))
	started := time.Now()
	p.onDone = func(err error) {
		if err == nil {
			finish(observability.OutcomeOK, "")
			b.logger.Debug("operation completed", "operation", string(op), "request_id", p.id, "duration", time.Since(started))
			return
		}
		category := contracts.ErrorCategory(err)
		outcome := observability.OutcomeError
		if category == contracts.CategoryLifecycle {
			outcome = observability.OutcomeRejected
		}
		finish(outcome, category)
		b.logger.Warn("operation failed",
			"operation", string(op),
			"request_id", p.id,
			"category", category,
			"error", err.Error(),
		)
	}
	return p
}

// inline runs fn on the actor goroutine. Lifecycle transitions use it.
func inline[T any](b *Bridge, op Op, fn func(ctx context.Context, s *Session) (T, error)) *Pending[T] {
	p := track[T](b, op)
	b.submit(command{op: op, id: p.id, fail: p.fail, run: func(s *Session) {
		p.complete(fn(b.ctx, s))
	}})
	return p
}

// moduleCall gates on a loaded module, then runs fn off the actor.
func moduleCall[T any](b *Bridge, op Op, fn func(ctx context.Context, rt capability.Runtime) (T, error)) *Pending[T] {
	p := track[T](b, op)
	b.submit(command{op: op, id: p.id, fail: p.fail, run: func(s *Session) {
		if err := s.requireModule(); err != nil {
			p.fail(err)
			return
		}
		b.spawn(func() { p.complete(fn(b.ctx, b.runtime)) })
	}})
	return p
}

// walletCall gates on a ready session, then runs fn off the actor.
func walletCall[T any](b *Bridge, op Op, fn func(ctx context.Context, w capability.Wallet) (T, error)) *Pending[T] {
	p := track[T](b, op)
	b.submit(command{op: op, id: p.id, fail: p.fail, run: func(s *Session) {
		w, err := s.requireWallet()
		if err != nil {
			p.fail(err)
			return
		}
		b.spawn(func() { p.complete(fn(b.ctx, w)) })
	}})
	return p
}

func walletExec(b *Bridge, op Op, fn func(ctx context.Context, w capability.Wallet) error) *Pending[struct{}] {
	return walletCall(b, op, func(ctx context.Context, w capability.Wallet) (struct{}, error) {
		return struct{}{}, fn(ctx, w)
	})
}

// moduleLoads collapses concurrent loads of the same runtime, including
// loads issued by different bridges sharing one module.
var moduleLoads singleflight.Group

// constructedModules records every runtime a wallet was constructed from.
// Construction happens at most once per loaded module, across bridges.
var constructedModules sync.Map

// LoadModule loads the capability module once. The module gives no readiness
// signal, so a conversion call serves as the probe: if it succeeds the module
// is already loaded. The load runs on the actor, so every command issued
// after LoadModule waits for it.
func (b *Bridge) LoadModule() *Pending[struct{}] {
	return inline(b, OpLoadModule, func(ctx context.Context, s *Session) (struct{}, error) {
		switch s.state {
		case Uninitialized:
		case Failed:
			return struct{}{}, &SessionFailedError{Cause: s.cause}
		case Stopped:
			return struct{}{}, ErrSessionStopped
		default:
			return struct{}{}, nil
		}
		result, err, shared := moduleLoads.Do(loadKey(b.runtime), func() (any, error) {
			if _, err := b.runtime.ConvertBTCToSats(ctx, 1); err == nil {
				return "probe_hit", nil
			}
			b.logger.Debug("capability module about to be loaded")
			if err := b.runtime.Load(ctx); err != nil {
				return "failed", err
			}
			return "loaded", nil
		})
		if !shared {
			if label, ok := result.(string); ok {
				b.metrics.ModuleLoad(label)
			}
		}
		if err != nil {
			return struct{}{}, &ModuleLoadError{Cause: err}
		}
		if result == "probe_hit" {
			b.logger.Debug("capability module already loaded, skipping load")
		}
		s.moduleLoaded()
		return struct{}{}, nil
	})
}

func loadKey(rt capability.Runtime) string {
	return fmt.Sprintf("%T@%p", rt, rt)
}

// State reports the current lifecycle state.
func (b *Bridge) State() *Pending[StateInfo] {
	return inline(b, OpState, func(_ context.Context, s *Session) (StateInfo, error) {
		return s.info(), nil
	})
}

// IsLifecycleError reports whether err was produced by lifecycle gating
// rather than by the module.
func IsLifecycleError(err error) bool {
	var lifecycle *lifecycleError
	var failed *SessionFailedError
	return errors.As(err, &lifecycle) || errors.As(err, &failed)
}
