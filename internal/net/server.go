// Package net implements the wire layer: frame codec, session cipher and
// the TCP acceptors that pump client connections.
package net

import (
	"context"
	stdnet "net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/config"
	"github.com/nexusgo/server/internal/net/packet"
)

// Server accepts TCP clients for one listener role (auth, realm or
// world) and runs a Connection per client. Connection IDs are unique
// across all servers in the process so session registries can share one
// keyspace.
var nextConnID atomic.Uint64

type Server struct {
	name string
	addr string
	reg  *packet.Registry
	cfg  config.NetworkConfig
	rate config.RateLimitConfig
	log  *zap.Logger

	// OnConnect runs on the accept goroutine before the connection pumps
	// start; handlers attach their per-client state here. May be nil.
	OnConnect func(c *Connection)
	// OnClose runs once per connection teardown. May be nil.
	OnClose func(c *Connection, reason string)

	ln stdnet.Listener
	wg sync.WaitGroup
}

func NewServer(name, addr string, reg *packet.Registry, cfg config.NetworkConfig, rate config.RateLimitConfig, log *zap.Logger) *Server {
	return &Server{
		name: name,
		addr: addr,
		reg:  reg,
		cfg:  cfg,
		rate: rate,
		log:  log.With(zap.String("listener", name)),
	}
}

// Listen binds the address. Split from Serve so boot can fail fast on a
// taken port before any goroutines start.
func (s *Server) Listen() error {
	ln, err := stdnet.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info("listening", zap.String("addr", s.addr))
	return nil
}

// Serve accepts until ctx is canceled or the listener closes. Call after
// Listen.
func (s *Server) Serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.log.Info("accept loop stopped")
			default:
				s.log.Error("accept failed", zap.Error(err))
			}
			s.wg.Wait()
			return
		}
		if tc, ok := conn.(*stdnet.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}

		c := newConnection(nextConnID.Add(1), conn, s.reg, s.cfg, s.rate, s.OnClose, s.log)
		if s.OnConnect != nil {
			s.OnConnect(c)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.run()
		}()
	}
}
