// Package tcp implements the voting wire protocol: a dispatcher accepting
// TCP connections and a per-connection session state machine that serves
// exactly one register, vote or tally command.
package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/votekeeper/internal/logging"
)

// Server accepts connections and starts one Session goroutine per
// connection. The store (via the Election service) is the only state
// shared between sessions.
type Server struct {
	address     string
	logger      logging.Logger
	election    Election
	decrypter   Decrypter
	readTimeout time.Duration
}

func NewServer(address string, l logging.Logger, election Election, decrypter Decrypter, readTimeout time.Duration) *Server {
	return &Server{
		address:     address,
		logger:      l.With("module", "tcp_server"),
		election:    election,
		decrypter:   decrypter,
		readTimeout: readTimeout,
	}
}

// Run listens on the configured address and serves until ctx is canceled.
// A bind failure is returned to the caller (the process cannot serve);
// per-session errors are contained within their sessions.
func (s *Server) Run(ctx context.Context) error {

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is canceled, then closes
// the listener and waits for in-flight sessions.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping TCP server...")
		listener.Close()
	}()

	s.logger.Info(ctx, "Starting TCP server", "address", listener.Addr().String())

	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				wg.Wait()
				return nil
			}
			s.logger.Error(ctx, "accept error", "error", err.Error())
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			NewSession(conn, s.logger, s.election, s.decrypter, s.readTimeout).Run(ctx)
		}()
	}
}
