// Package delivery exposes the replay loader's published snapshot and
// message sequences over Server-Sent Events. It is a pure consumer of
// the core: it never mutates the Market and holds only a read lock
// while streaming.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ironbook/internal/mbo"
	"ironbook/internal/metrics"
	"ironbook/internal/orderbook"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const heartbeatInterval = 15 * time.Second

// streamEndEvent is the synthetic sentinel published to a consumer when
// its stream ends, so clients can demultiplex end-of-stream from a
// genuine connection drop.
const streamEndEvent = "stream_end"

// Publisher exposes the loader's published sequences behind a
// single-writer / multi-reader lock. The delivery server never writes
// to these slices itself.
type Publisher struct {
	mu        sync.RWMutex
	snapshots []orderbook.MarketSnapshot
	messages  []mbo.Msg
}

// NewPublisher returns an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish replaces the published sequences under the write lock. The
// process entrypoint calls this once, after replay completes, handing
// off the loader's accumulated snapshots and raw messages to concurrent
// streaming readers; there is no live writer afterward in this core.
func (p *Publisher) Publish(snapshots []orderbook.MarketSnapshot, messages []mbo.Msg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = snapshots
	p.messages = messages
}

// snapshotsFrom returns a copy of snapshots starting at idx, and the
// total length observed under the same lock acquisition.
func (p *Publisher) snapshotsFrom(idx int) ([]orderbook.MarketSnapshot, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if idx >= len(p.snapshots) {
		return nil, len(p.snapshots)
	}
	out := make([]orderbook.MarketSnapshot, len(p.snapshots)-idx)
	copy(out, p.snapshots[idx:])
	return out, len(p.snapshots)
}

func (p *Publisher) messagesFrom(idx int) ([]mbo.Msg, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if idx >= len(p.messages) {
		return nil, len(p.messages)
	}
	out := make([]mbo.Msg, len(p.messages)-idx)
	copy(out, p.messages[idx:])
	return out, len(p.messages)
}

// Server streams the Publisher's sequences over SSE. Every open
// connection watches one tomb, whose death ends all of them.
type Server struct {
	address   string
	publisher *Publisher
	metrics   *metrics.Registry

	cancel context.CancelFunc
}

// New builds a Server bound to address, streaming from publisher.
// reg may be nil to disable metrics.
func New(address string, publisher *Publisher, reg *metrics.Registry) *Server {
	return &Server{address: address, publisher: publisher, metrics: reg}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()
	t, ctx := tomb.WithContext(ctx)

	router := mux.NewRouter()
	router.HandleFunc("/stream/snapshots", s.handleStream(t, snapshotStream)).Methods(http.MethodGet)
	router.HandleFunc("/stream/messages", s.handleStream(t, messageStream)).Methods(http.MethodGet)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	httpServer := &http.Server{Addr: s.address, Handler: router}

	t.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	log.Info().Str("address", s.address).Msg("delivery server running")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return t.Wait()
}

// Shutdown stops the server.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

// streamKind distinguishes which Publisher sequence a connection reads.
type streamKind int

const (
	snapshotStream streamKind = iota
	messageStream
)

// route names the stream for the http_requests_total label.
func (k streamKind) route() string {
	if k == messageStream {
		return "/stream/messages"
	}
	return "/stream/snapshots"
}

// handleStream returns the handler for one SSE connection. Each
// connection runs on its own http.Server request goroutine and watches
// t.Dying(), so the server's shutdown unwinds every open stream
// cleanly. The handler decrements the active-connections gauge exactly
// once, via defer, regardless of how the connection ends.
func (s *Server) handleStream(t *tomb.Tomb, kind streamKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			s.metrics.HTTPRequest(kind.route(), "500")
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		s.metrics.HTTPRequest(kind.route(), "200")

		connID := uuid.New().String()
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		s.metrics.ConnectionOpened()
		defer s.metrics.ConnectionClosed()

		log.Info().Str("connectionId", connID).Msg("stream connection opened")
		defer log.Info().Str("connectionId", connID).Msg("stream connection closed")

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		pos := 0
		for {
			select {
			case <-r.Context().Done():
				writeEvent(w, streamEndEvent, nil)
				flusher.Flush()
				return
			case <-t.Dying():
				writeEvent(w, streamEndEvent, nil)
				flusher.Flush()
				return
			case <-ticker.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
			default:
				sent := s.sendNext(w, kind, &pos)
				flusher.Flush()
				if !sent {
					time.Sleep(50 * time.Millisecond)
				}
			}
		}
	}
}

func (s *Server) sendNext(w http.ResponseWriter, kind streamKind, pos *int) bool {
	switch kind {
	case snapshotStream:
		batch, _ := s.publisher.snapshotsFrom(*pos)
		if len(batch) == 0 {
			return false
		}
		for _, snap := range batch {
			writeEvent(w, "snapshot", snap)
		}
		*pos += len(batch)
		return true
	case messageStream:
		batch, _ := s.publisher.messagesFrom(*pos)
		if len(batch) == 0 {
			return false
		}
		for _, msg := range batch {
			writeEvent(w, "message", msg)
		}
		*pos += len(batch)
		return true
	default:
		return false
	}
}

func writeEvent(w http.ResponseWriter, event string, payload any) {
	fmt.Fprintf(w, "event: %s\n", event)
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("event", event).Msg("failed to marshal SSE payload")
			return
		}
		fmt.Fprintf(w, "data: %s\n", data)
	}
	fmt.Fprint(w, "\n")
}
