package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"
)

// Server owns the TLS listener and the per-connection session tasks.
type Server struct {
	addr      string
	tlsConfig *tls.Config
	mgr       *Manager

	maxConns int // 0 = unlimited
	active   atomic.Int64
}

func NewServer(addr string, tlsConfig *tls.Config, mgr *Manager) *Server {
	return &Server{addr: addr, tlsConfig: tlsConfig, mgr: mgr}
}

// SetMaxConnections caps the number of concurrent sessions. 0 means
// unlimited.
func (s *Server) SetMaxConnections(max int) {
	s.maxConns = max
}

// admit reserves a connection slot, or reports false when the server is full.
// Every successful admit must be paired with a release.
func (s *Server) admit() bool {
	if s.maxConns <= 0 {
		s.active.Add(1)
		return true
	}
	for {
		cur := s.active.Load()
		if cur >= int64(s.maxConns) {
			return false
		}
		if s.active.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (s *Server) release() {
	s.active.Add(-1)
}

// Run accepts connections until ctx is cancelled, then waits for every live
// session to finish. Each accepted connection gets its own session goroutine;
// the TLS handshake happens lazily on the first read.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	tlsLn := tls.NewListener(ln, s.tlsConfig)

	go func() {
		<-ctx.Done()
		tlsLn.Close() //nolint:errcheck // unblocks Accept on shutdown
	}()

	log.Printf("[server] listening on %s", s.addr)

	var sessions sync.WaitGroup
	for {
		conn, err := tlsLn.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			log.Printf("[server] accept: %v", err)
			continue
		}
		if !s.admit() {
			log.Printf("[server] connection from %s rejected: server full", conn.RemoteAddr())
			conn.Close()
			continue
		}
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			defer s.release()
			handleSession(ctx, conn, s.mgr)
		}()
	}

	log.Printf("[server] waiting for sessions to close...")
	sessions.Wait()
	return nil
}
