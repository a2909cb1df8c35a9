package persistence

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/ridgelinehq/roofmetrics/pkg/metrics"
)

const probeTimeout = 3 * time.Second

// Reachability is the boolean observable the gateway consumes to decide
// between direct write and enqueue.
type Reachability interface {
	Online() bool
}

// ProbeFunc checks whether the backend is reachable. It must return
// within its context deadline.
type ProbeFunc func(ctx context.Context) error

// HTTPProbe probes reachability with a HEAD request against the backend
// base URL. Any response at all counts as reachable; only transport
// failures mean offline.
func HTTPProbe(url string) ProbeFunc {
	client := &http.Client{Timeout: probeTimeout}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		return nil
	}
}

// NetWatcher polls a reachability probe and fires transition callbacks.
// While offline the probe interval backs off exponentially so a dead
// backend is not hammered; the first successful probe resets it.
type NetWatcher struct {
	probe    ProbeFunc
	interval time.Duration
	online   atomic.Bool

	mu        sync.Mutex
	onOnline  []func()
	onOffline []func()

	stop chan struct{}
	done chan struct{}
}

// NewNetWatcher builds a watcher. The initial state is offline until the
// first probe succeeds.
func NewNetWatcher(probe ProbeFunc, interval time.Duration) *NetWatcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &NetWatcher{
		probe:    probe,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Online reports the last observed reachability.
func (w *NetWatcher) Online() bool {
	return w.online.Load()
}

// OnOnline registers a callback fired on every offline-to-online
// transition. Queue replay hangs off this.
func (w *NetWatcher) OnOnline(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onOnline = append(w.onOnline, fn)
}

// OnOffline registers a callback fired on every online-to-offline
// transition.
func (w *NetWatcher) OnOffline(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onOffline = append(w.onOffline, fn)
}

// Start begins probing in the background until Stop is called.
func (w *NetWatcher) Start() {
	go w.run()
}

// Stop halts probing and waits for the loop to exit.
func (w *NetWatcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *NetWatcher) run() {
	defer close(w.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.interval
	bo.MaxInterval = 5 * time.Minute
	bo.MaxElapsedTime = 0

	w.probeOnce()
	for {
		wait := w.interval
		if !w.online.Load() {
			wait = bo.NextBackOff()
		} else {
			bo.Reset()
		}
		select {
		case <-w.stop:
			return
		case <-time.After(wait):
			w.probeOnce()
		}
	}
}

func (w *NetWatcher) probeOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	err := w.probe(ctx)
	nowOnline := err == nil
	wasOnline := w.online.Swap(nowOnline)

	if nowOnline {
		metrics.NetworkUp.Set(1)
	} else {
		metrics.NetworkUp.Set(0)
	}

	switch {
	case nowOnline && !wasOnline:
		zap.S().Infof("Backend reachable again")
		w.fire(w.callbacks(true))
	case !nowOnline && wasOnline:
		zap.S().Warnf("Backend unreachable: %s", err)
		w.fire(w.callbacks(false))
	}
}

func (w *NetWatcher) callbacks(online bool) []func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if online {
		return append([]func(){}, w.onOnline...)
	}
	return append([]func(){}, w.onOffline...)
}

func (w *NetWatcher) fire(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
