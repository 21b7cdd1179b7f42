package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzbill/tide/internal/runtime"
	streamsvc "github.com/rzbill/tide/internal/services/streams"
	logpkg "github.com/rzbill/tide/pkg/log"
)

// Server is the HTTP transport over the runtime's event store.
type Server struct {
	rt      *runtime.Runtime
	streams *streamsvc.Service
	logger  logpkg.Logger
	srv     *http.Server
	lis     net.Listener
}

// New wires the handler mux over the runtime.
func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	mux := http.NewServeMux()
	s := &Server{
		rt:      rt,
		streams: streamsvc.New(rt.Store(), logger),
		logger:  logger.With(logpkg.Component("http")),
		srv:     &http.Server{Handler: cors(mux)},
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/events/append", s.handleAppend)
	mux.HandleFunc("/v1/events/stream", s.handleStreamSSE)
	mux.Handle("/metrics", promhttp.Handler())
	return s
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type appendReq struct {
	Type     string            `json:"type"`
	Payload  []byte            `json:"payload"`
	Metadata map[string]string `json:"metadata"`
}

type appendResp struct {
	ID    string `json:"id"`
	Token uint64 `json:"token"`
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req appendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ack, err := s.streams.Publish(r.Context(), streamsvc.PublishRequest{
		Type: req.Type, Payload: req.Payload, Metadata: req.Metadata,
	})
	if err != nil {
		s.logger.Error("append failed", logpkg.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(appendResp{ID: ack.ID, Token: ack.Token})
}

// handleStreamSSE streams events as Server-Sent Events. Query params:
// from (decimal token to resume after), filter (CEL), limit.
func (s *Server) handleStreamSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	opts := streamsvc.SubscribeOptions{
		From:   r.URL.Query().Get("from"),
		Filter: r.URL.Query().Get("filter"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	if err := s.streams.Subscribe(sseSink{w: w, r: r}, opts); err != nil {
		// Headers are already out; all that is left is to log and drop.
		s.logger.Warn("subscribe ended with error", logpkg.Err(err))
	}
}
