package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	httpAdapter "github.com/aretw0/railyard/pkg/adapters/http"
	"github.com/aretw0/railyard/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	Options
	// Addr overrides server.addr.
	Addr string
	// Watch reloads the rails when their files change and streams the
	// results on GET /events.
	Watch bool

	Stderr io.Writer
	// Ready, if set, receives the listening address.
	Ready func(addr string)
}

// RunServe serves the session API over HTTP until ctx is done.
func RunServe(ctx context.Context, opts ServeOptions) error {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	logger, err := createLogger(opts.Options, opts.Stderr)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	eng, err := createEngine(opts.Options, logger, metrics)
	if err != nil {
		return err
	}
	defer eng.Close()

	handlerOpts := []httpAdapter.Option{
		httpAdapter.WithMetrics(metrics.Handler()),
		httpAdapter.WithLogger(logger),
	}
	hub := newReloadHub()
	if opts.Watch {
		handlerOpts = append(handlerOpts, httpAdapter.WithReloader(hub))
	}
	handler, err := httpAdapter.NewHandler(eng, handlerOpts...)
	if err != nil {
		return err
	}

	addr := opts.Addr
	if addr == "" {
		addr = eng.Config().Server.Addr
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweeper := eng.NewSweeper()
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Info("HTTP server listening", "address", ln.Addr().String(), "rails", eng.Name)
	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	})
	if opts.Watch {
		g.Go(func() error {
			events, err := eng.Watch(ctx)
			if err != nil {
				return err
			}
			for err := range events {
				hub.publish(err)
			}
			return nil
		})
	}
	return g.Wait()
}

// reloadHub fans the results of a single rails watcher out to every
// GET /events subscriber.
type reloadHub struct {
	mu   sync.Mutex
	subs map[chan error]struct{}
}

func newReloadHub() *reloadHub {
	return &reloadHub{subs: make(map[chan error]struct{})}
}

func (h *reloadHub) Watch(ctx context.Context) (<-chan error, error) {
	ch := make(chan error, 4)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch, nil
}

// publish never blocks; a subscriber that falls behind misses results.
func (h *reloadHub) publish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- err:
		default:
		}
	}
}
