package conduit

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/meshforge/conduit/internal/logging"
	cerrors "github.com/meshforge/conduit/pkg/errors"
)

// Server accepts inbound transport sessions and owns the resulting
// connections. The accept loop runs on a background goroutine; handler
// dispatch stays on whichever goroutine calls Pump.
type Server struct {
	listener Listener
	bridge   *Bridge
	registry *Registry
	onAccept func(*Conn)
	log      *logging.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewServer(listener Listener, opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	bridge := NewBridge()
	return &Server{
		listener: listener,
		bridge:   bridge,
		registry: NewRegistry(bridge, opts),
		log:      logging.NewLogger("server"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnAccept registers fn to run for every accepted connection before any
// of its events are dispatched. Install handlers here. Must be called
// before Start.
func (s *Server) OnAccept(fn func(*Conn)) {
	s.onAccept = fn
}

// Start launches the accept loop.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.acceptLoop()
		s.log.Info("listening", logging.Field{Key: "address", Value: s.listener.Addr()})
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		binding, err := s.listener.Accept(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) || cerrors.IsContextError(err) {
				return
			}
			var ce *cerrors.ConnError
			if errors.As(err, &ce) && ce.Code == cerrors.ErrCodeTransportClosed {
				return
			}
			s.log.Warn("accept failed", logging.Field{Key: "error", Value: err})
			continue
		}

		c := s.registry.Accept(binding)
		if s.onAccept != nil {
			s.onAccept(c)
		}
		s.log.Info("connection accepted",
			logging.Field{Key: "connection_id", Value: uint64(c.ID())},
			logging.Field{Key: "remote", Value: binding.RemoteAddr()})
	}
}

// Pump processes pending connection events. Call once per application
// tick on the main goroutine; it is the only place handlers fire. After
// delivery, disconnected connections with drained queues are reaped.
func (s *Server) Pump() int {
	n := s.bridge.Pump()
	s.registry.Reap()
	return n
}

func (s *Server) Registry() *Registry { return s.registry }

func (s *Server) Addr() string { return s.listener.Addr() }

// Close stops accepting, disconnects every live connection, and waits
// for the accept loop. Pump once more afterwards to deliver the final
// status events.
func (s *Server) Close() {
	s.stopOnce.Do(func() {
		s.cancel()
		if err := s.listener.Close(); err != nil {
			s.log.Debug("listener close", logging.Field{Key: "error", Value: err})
		}
		s.registry.ForEach(func(c *Conn) { c.Disconnect() })
		s.wg.Wait()
	})
}
