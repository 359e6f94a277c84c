package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/boristopalov/timetravel/pkg/messaging"
)

// Envelope is the JSON frame sent to observers.
type Envelope struct {
	Topic     string    `json:"topic"`
	From      string    `json:"from"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Server pushes broker events to websocket observers. Each connection is a
// broker subscriber; observers that fall behind miss events rather than
// stalling the run.
type Server struct {
	broker messaging.Broker

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	sessions atomic.Int64
}

func NewServer(b messaging.Broker) *Server {
	return &Server{
		broker: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Sessions is the number of connected observers.
func (s *Server) Sessions() int {
	return int(s.sessions.Load())
}

// Handler serves /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.WSHandler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]int{"sessions": s.Sessions()})
	})
	return mux
}

// WSHandler upgrades the connection and streams events. The optional
// "topics" query parameter is a comma separated filter.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		topics := parseTopics(r.URL.Query().Get("topics"))

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid := fmt.Sprintf("observer-%d", s.nextID.Add(1))
		out := make(chan messaging.Message, 1024)
		if err := s.broker.Subscribe(sid, out); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscribe failed"), time.Now().Add(time.Second))
			return
		}
		s.sessions.Add(1)
		defer func() {
			if err := s.broker.Unsubscribe(sid); err != nil {
				log.Printf("Warning: %v", err)
			}
			s.sessions.Add(-1)
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// writer
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case msg := <-out:
					if len(topics) > 0 && !topics[msg.Topic] {
						continue
					}
					b, err := json.Marshal(Envelope{
						Topic:     msg.Topic,
						From:      msg.From,
						Timestamp: msg.Timestamp,
						Data:      msg.Content,
					})
					if err != nil {
						log.Printf("Warning: failed to encode %s event: %v", msg.Topic, err)
						continue
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Observers never send anything meaningful; reading only detects the
		// close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// ListenAndServe serves the stream on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("Streaming events on ws://%s/ws", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func parseTopics(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	topics := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics[t] = true
		}
	}
	return topics
}
