// Package poller re-runs a fetch-and-derive pipeline at a fixed interval.
//
// Stop cancels the ticker but never aborts a fetch already in flight: the
// fetch runs on a detached, time-bounded context and its result is dropped
// if it lands after Stop. Runs may overlap; Apply and Fail calls are
// serialised, and a result older than the last one delivered is discarded.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pipeline is the work a poller drives.
type Pipeline[T any] struct {
	Fetch func(ctx context.Context) (T, error)
	Apply func(T)
	Fail  func(error)
}

// Observer is notified about each completed run, delivered or not.
type Observer interface {
	ObserveRun(name string, d time.Duration, err error, delivered bool)
}

type Options struct {
	Interval time.Duration
	// Timeout bounds each fetch; zero means no bound.
	Timeout  time.Duration
	Logger   *slog.Logger
	Observer Observer
}

type Poller[T any] struct {
	name     string
	pipeline Pipeline[T]
	opts     Options

	trigger chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	once    sync.Once
	started bool
	startMu sync.Mutex

	applyMu   sync.Mutex
	alive     bool
	seq       uint64
	delivered uint64

	inflight sync.WaitGroup
}

func New[T any](name string, p Pipeline[T], opts Options) *Poller[T] {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Poller[T]{
		name:     name,
		pipeline: p,
		opts:     opts,
		trigger:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Poller[T]) Name() string { return p.name }

// Start runs the pipeline once immediately and then on every tick or
// trigger until ctx is done or Stop is called.
func (p *Poller[T]) Start(ctx context.Context) {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.applyMu.Lock()
	p.alive = true
	p.applyMu.Unlock()

	go p.loop(ctx)
}

func (p *Poller[T]) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.opts.Logger.Info("poller started", "poller", p.name, "interval", p.opts.Interval)
	p.launch(ctx)
	for {
		select {
		case <-ctx.Done():
			p.markDead()
			return
		case <-p.stopCh:
			p.markDead()
			return
		case <-ticker.C:
			p.launch(ctx)
		case <-p.trigger:
			p.launch(ctx)
		}
	}
}

// Trigger requests an early run. Requests made while one is pending collapse.
func (p *Poller[T]) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels future runs and returns once the loop has exited. Results
// of fetches still in flight are discarded.
func (p *Poller[T]) Stop() {
	p.once.Do(func() { close(p.stopCh) })
	p.startMu.Lock()
	started := p.started
	p.startMu.Unlock()
	if started {
		<-p.done
	}
	p.markDead()
}

// Wait blocks until every launched fetch has returned.
func (p *Poller[T]) Wait() {
	p.inflight.Wait()
}

// Alive reports whether results are still being applied.
func (p *Poller[T]) Alive() bool {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()
	return p.alive
}

func (p *Poller[T]) markDead() {
	p.applyMu.Lock()
	was := p.alive
	p.alive = false
	p.applyMu.Unlock()
	if was {
		p.opts.Logger.Info("poller stopped", "poller", p.name)
	}
}

func (p *Poller[T]) launch(parent context.Context) {
	p.applyMu.Lock()
	p.seq++
	seq := p.seq
	p.applyMu.Unlock()

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ctx := context.WithoutCancel(parent)
		if p.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
			defer cancel()
		}
		start := time.Now()
		res, err := p.pipeline.Fetch(ctx)
		delivered := p.deliver(seq, res, err)
		if p.opts.Observer != nil {
			p.opts.Observer.ObserveRun(p.name, time.Since(start), err, delivered)
		}
	}()
}

func (p *Poller[T]) deliver(seq uint64, res T, err error) bool {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()
	if !p.alive {
		p.opts.Logger.Debug("discarding result after stop", "poller", p.name, "seq", seq)
		return false
	}
	if seq < p.delivered {
		p.opts.Logger.Debug("discarding out-of-order result", "poller", p.name, "seq", seq, "delivered", p.delivered)
		return false
	}
	p.delivered = seq
	if err != nil {
		p.opts.Logger.Warn("poll run failed", "poller", p.name, "err", err)
		if p.pipeline.Fail != nil {
			p.pipeline.Fail(err)
		}
		return true
	}
	if p.pipeline.Apply != nil {
		p.pipeline.Apply(res)
	}
	return true
}
