// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package introspect

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// ShutdownTimeout bounds the graceful shutdown performed by Serve.
const ShutdownTimeout = 5 * time.Second

// Server serves the introspection API of a thread runtime.
type Server struct {
	host     string
	port     int
	server   *http.Server
	listener net.Listener
}

// NewServer creates a new introspection Server
//
// Listen and Serve are separate so that the listening port is known before
// the runtime's threads are started. When port is 0, OS will dynamically
// allocate the listening port.
func NewServer(host string, port int, rt ThreadRuntime) *Server {
	return &Server{
		host:   host,
		port:   port,
		server: &http.Server{Handler: NewHTTPRouter(rt)},
	}
}

// Listen on port
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.host, fmt.Sprint(s.port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.listener = ln
	if s.port == 0 {
		s.port = ln.Addr().(*net.TCPAddr).Port
		log.WithField("port", s.port).Info("Listening port was dynamically allocated")
	}

	log.Debugf("Introspection server listening on %s:%d", s.host, s.port)
	return nil
}

func (s *Server) IsListening() bool {
	return s.listener != nil
}

// Serve requests until ctx is canceled. In-flight requests are given
// ShutdownTimeout to complete before connections are closed.
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()

	select {
	case err := <-s.serveAsync():
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Introspection server did not shut down gracefully")
		}
		return ctx.Err()
	}
}

func (s *Server) serveAsync() chan error {
	errors := make(chan error, 1)
	go func() {
		errors <- s.server.Serve(s.listener)
	}()

	return errors
}

// Host is server's host
func (s *Server) Host() string {
	return s.host
}

// Port is server's port
func (s *Server) Port() int {
	return s.port
}

// URL is full server url for specified endpoint
func (s *Server) URL(endpoint string) string {
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(s.host, fmt.Sprint(s.port)), endpoint)
}

// Close forcefully closes listeners & connections
func (s *Server) Close() error {
	err := s.server.Close()
	if err == nil {
		log.Info("Introspection server closed")
	}
	return err
}

// Shutdown gracefully shuts down server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
