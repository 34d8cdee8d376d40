package mapview

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"botmap/pkg/logger"
)

// Default polling intervals
const (
	DefaultInteractionInterval = 10 * time.Second
	DefaultRefreshInterval     = 15 * time.Second
)

// Poller drives a render context from two independent timers: a fast
// interaction poll and a slower full refresh. The loops do not coordinate;
// a slow fetch from one tick is not cancelled by the next.
type Poller struct {
	rc                  *RenderContext
	interactionInterval time.Duration
	refreshInterval     time.Duration
	requestTimeout      time.Duration

	shutdown chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPoller creates a poller. Zero intervals use the defaults.
func NewPoller(rc *RenderContext, interactionInterval, refreshInterval, requestTimeout time.Duration) *Poller {
	if interactionInterval <= 0 {
		interactionInterval = DefaultInteractionInterval
	}
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &Poller{
		rc:                  rc,
		interactionInterval: interactionInterval,
		refreshInterval:     refreshInterval,
		requestTimeout:      requestTimeout,
		shutdown:            make(chan struct{}),
	}
}

// Start runs an initial full refresh and launches both loops.
func (p *Poller) Start() {
	p.wg.Add(2)
	go p.refreshLoop()
	go p.interactionLoop()
}

// Stop ends both loops and waits for in-flight ticks to finish.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.shutdown)
	})
	p.wg.Wait()
}

// tickContext bounds one tick's requests and cancels them on shutdown.
func (p *Poller) tickContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), p.requestTimeout)
	go func() {
		select {
		case <-p.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (p *Poller) refreshLoop() {
	defer p.wg.Done()

	p.refreshOnce()

	ticker := time.NewTicker(p.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.refreshOnce()
		}
	}
}

func (p *Poller) interactionLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interactionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdown:
			return
		case <-ticker.C:
			ctx, cancel := p.tickContext()
			_ = p.rc.PollInteractions(ctx)
			cancel()
		}
	}
}

func (p *Poller) refreshOnce() {
	ctx, cancel := p.tickContext()
	defer cancel()

	if err := p.rc.Refresh(ctx); err != nil {
		failed := 1
		if merr, ok := err.(*multierror.Error); ok {
			failed = len(merr.Errors)
		}
		logger.Log.WithFields(logrus.Fields{
			"session": p.rc.Session().String(),
			"failed":  failed,
			"state":   p.rc.State().String(),
		}).Debug("Refresh tick finished with errors")
	}
}
