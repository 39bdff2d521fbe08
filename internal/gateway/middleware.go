package gateway

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/yaya56vv/cortex/internal/observability"
)

// statusWriter captures the response code for the access log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("gateway: response writer does not support hijacking")
	}
	return h.Hijack()
}

// withMiddleware wraps the mux with request id propagation, panic recovery,
// access logging and request metrics.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = ksuid.New().String()
		}
		ctx := observability.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()

		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panicked",
					"request_id", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec)
				if sw.status == 0 {
					writeJSON(sw, http.StatusInternalServerError, errorBody{Error: "internal error"})
				}
			}
			elapsed := time.Since(start)
			if s.metrics != nil {
				s.metrics.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(sw.status), elapsed.Seconds())
			}
			s.logger.Info("request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", elapsed.Milliseconds())
		}()

		next.ServeHTTP(sw, r)
	})
}
