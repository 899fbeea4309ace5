/* ippserver - a self-contained network IPP server
 *
 * HTTP front-end: multiplexes static GETs with IPP POSTs
 */

package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/OpenPrinting/goipp"
)

var httpSessionID uint64

// sessionIDKey is the context key ConnContext stashes a per-connection
// session id under, so every request arriving on the same keep-alive
// connection shares one id; Send-Document relies on this to confirm a
// document arrives on the same session that created its job
type sessionIDKeyType struct{}

var sessionIDKey sessionIDKeyType

// HTTPServer is the printer's HTTP front-end. A single instance
// serves both the IPv4 and IPv6 listeners
type HTTPServer struct {
	log     *Logger
	printer *Printer
	srv     *http.Server
}

// NewHTTPServer builds an HTTP front-end for printer
func NewHTTPServer(printer *Printer, logger *Logger) *HTTPServer {
	s := &HTTPServer{
		log:     logger,
		printer: printer,
	}

	s.srv = &http.Server{
		Handler:      s,
		ReadTimeout:  HTTPReadTimeout,
		IdleTimeout:  HTTPKeepAliveTimeout,
		ErrorLog:     log.New(logger.LineWriter(LogError, '!'), "", 0),
		ConnContext: func(ctx context.Context, _ net.Conn) context.Context {
			id := atomic.AddUint64(&httpSessionID, 1)
			return context.WithValue(ctx, sessionIDKey, id)
		},
	}

	return s
}

// Serve runs the HTTP server over an already-bound listener. It
// blocks until the listener is closed
func (s *HTTPServer) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// Close shuts down the HTTP server, closing all listeners it owns
func (s *HTTPServer) Close() error {
	return s.srv.Close()
}

// ServeHTTP implements http.Handler, dispatching a single HTTP
// transaction to either IPP handling or static asset serving
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if v := recover(); v != nil {
			s.log.Begin().Error('!', "panic handling request: %v", v).Commit()
			w.WriteHeader(http.StatusInternalServerError)
		}
	}()

	sessionID, _ := r.Context().Value(sessionIDKey).(uint64)

	s.log.Begin().
		HTTPRqLine(LogDebug, '>', int(sessionID), r.Method, r.URL.String(), r.Proto).
		Commit()

	if r.Header.Get("Upgrade") != "" {
		http.Error(w, "protocol upgrade is not supported", http.StatusNotImplemented)
		return
	}

	switch {
	case r.Method == http.MethodPost:
		s.servePost(w, r, sessionID)
	case r.Method == http.MethodGet && r.URL.Path == "/icon.png":
		s.serveIcon(w, r)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		http.NotFound(w, r)
	case r.Method == http.MethodOptions:
		w.Header().Set("Allow", "GET, HEAD, OPTIONS, POST")
		w.WriteHeader(http.StatusOK)
	default:
		w.Header().Set("Allow", "GET, HEAD, OPTIONS, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// servePost handles POST requests, the only method IPP requests
// arrive as
func (s *HTTPServer) servePost(w http.ResponseWriter, r *http.Request, sessionID uint64) {
	if ct := r.Header.Get("Content-Type"); ct != "application/ipp" {
		http.Error(w, "unsupported content type", http.StatusBadRequest)
		return
	}

	maxBytes := int64(s.printer.KOctetsMax()) * 1024
	body := http.MaxBytesReader(w, r.Body, maxBytes)

	var req goipp.Message
	if err := req.Decode(body); err != nil {
		s.log.Begin().Error('!', "[%d] IPP decode error: %s", sessionID, err).Commit()
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.log.Begin().
		IPPRequest(LogTraceIPP, '>', &req).
		Commit()

	resp := Dispatch(r.Context(), s.printer, sessionID, &req, body)

	s.log.Begin().
		IPPResponse(LogTraceIPP, '<', resp).
		Commit()

	respBytes, err := resp.EncodeBytes()
	if err != nil {
		s.log.Begin().Error('!', "[%d] IPP encode error: %s", sessionID, err).Commit()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/ipp")
	w.Write(respBytes)
}

// serveIcon streams the configured printer icon
func (s *HTTPServer) serveIcon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, s.printer.cfg.Icon)
}
