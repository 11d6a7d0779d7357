package client

import (
	"context"
	"sync"
	"time"

	"interview-evaluator/domain"
)

const DefaultPollInterval = 3 * time.Second

// StatusFetcher is the part of Client the poller needs.
type StatusFetcher interface {
	Status(ctx context.Context, interviewID string) (domain.StatusView, error)
}

type PollOptions struct {
	Interval time.Duration
	OnUpdate func(domain.StatusView)
	OnDone   func(domain.StatusView)
	OnFailed func(domain.StatusView)
	OnError  func(error)
}

// Poller watches one interview until it reaches done or failed.
type Poller struct {
	fetcher     StatusFetcher
	interviewID string
	opts        PollOptions

	mu       sync.Mutex
	last     domain.StatusView
	finished bool
	stopped  bool
	cancel   context.CancelFunc
}

func NewPoller(fetcher StatusFetcher, interviewID string, opts PollOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	return &Poller{
		fetcher:     fetcher,
		interviewID: interviewID,
		opts:        opts,
	}
}

// Run polls immediately and then on every tick until a terminal status is
// observed (returns nil) or the loop is cancelled (returns the context error).
func (p *Poller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return context.Canceled
	}
	if p.finished {
		p.mu.Unlock()
		return nil
	}
	p.cancel = cancel
	p.mu.Unlock()

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		if p.poll(ctx) {
			return nil
		}

		select {
		case <-ctx.Done():
			if p.Finished() {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Refetch polls once outside the timer. A terminal result ends a running loop.
func (p *Poller) Refetch(ctx context.Context) (domain.StatusView, error) {
	view, err := p.fetcher.Status(ctx, p.interviewID)
	if err != nil {
		p.reportError(err)
		return domain.StatusView{}, err
	}
	p.apply(view)
	return view, nil
}

// Stop cancels a running loop. It is safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
}

// Last returns the most recently observed status.
func (p *Poller) Last() domain.StatusView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Poller) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

func (p *Poller) poll(ctx context.Context) bool {
	view, err := p.fetcher.Status(ctx, p.interviewID)
	if err != nil {
		if ctx.Err() == nil {
			p.reportError(err)
		}
		return p.Finished()
	}
	return p.apply(view)
}

// apply records view and fires callbacks. Terminal callbacks run at most once.
func (p *Poller) apply(view domain.StatusView) bool {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return true
	}
	p.last = view
	terminal := view.Status.IsTerminal()
	if terminal {
		p.finished = true
	}
	cancel := p.cancel
	p.mu.Unlock()

	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate(view)
	}
	if !terminal {
		return false
	}

	switch view.Status {
	case domain.StatusDone:
		if p.opts.OnDone != nil {
			p.opts.OnDone(view)
		}
	case domain.StatusFailed:
		if p.opts.OnFailed != nil {
			p.opts.OnFailed(view)
		}
	}
	if cancel != nil {
		cancel()
	}
	return true
}

func (p *Poller) reportError(err error) {
	if p.opts.OnError != nil {
		p.opts.OnError(err)
	}
}
