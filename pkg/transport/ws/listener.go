package ws

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/pkg/conduit"
	cerrors "github.com/meshforge/conduit/pkg/errors"
)

// ListenerOptions configure the WebSocket accept side.
type ListenerOptions struct {
	// AllowedOrigins restricts browser connections. Empty or "*" allows
	// everything; entries may carry a "*." prefix wildcard.
	AllowedOrigins []string
	PingInterval   time.Duration
	// TLSConfig switches the endpoint to wss when set.
	TLSConfig *tls.Config
}

// Listener upgrades inbound HTTP requests at /ws and hands the resulting
// bindings to Accept.
type Listener struct {
	httpServer  *http.Server
	netListener net.Listener
	upgrader    websocket.Upgrader
	bindings    chan *Binding
	opts        ListenerOptions

	done      chan struct{}
	closeOnce sync.Once
	log       *logging.Logger
}

func NewListener(addr string, opts ListenerOptions) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, cerrors.ErrListenFailed(addr, err)
	}

	l := &Listener{
		netListener: ln,
		bindings:    make(chan *Binding, 16),
		opts:        opts,
		done:        make(chan struct{}),
		log:         logging.NewLogger("ws-listener"),
	}
	l.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return l.isAllowedOrigin(r.Header.Get("Origin"), r.Host)
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", l.handleUpgrade)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	l.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second, // protects against slowloris
		TLSConfig:         opts.TLSConfig,
	}

	go l.serve()
	return l, nil
}

func (l *Listener) serve() {
	var err error
	if l.opts.TLSConfig != nil {
		err = l.httpServer.ServeTLS(l.netListener, "", "")
	} else {
		err = l.httpServer.Serve(l.netListener)
	}
	if err != nil && err != http.ErrServerClosed {
		l.log.Error("serve failed", logging.Field{Key: "error", Value: err})
	}
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.Warn("upgrade failed",
			logging.Field{Key: "remote", Value: r.RemoteAddr},
			logging.Field{Key: "error", Value: err})
		return
	}

	b := newBinding(conn, l.opts.PingInterval)
	select {
	case l.bindings <- b:
	case <-l.done:
		b.Close()
	}
}

// Accept blocks until an inbound session completes its upgrade, the
// context is canceled, or the listener closes.
func (l *Listener) Accept(ctx context.Context) (conduit.Binding, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, cerrors.ErrTransportClosed()
	case b := <-l.bindings:
		return b, nil
	}
}

func (l *Listener) Addr() string {
	return l.netListener.Addr().String()
}

func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.httpServer.Close()
	})
	return err
}

func (l *Listener) isAllowedOrigin(origin, host string) bool {
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originHost := parsed.Host

	// Same-host requests are always fine.
	if strings.EqualFold(originHost, host) {
		return true
	}

	for _, allowed := range l.opts.AllowedOrigins {
		if allowed == "*" {
			return true
		}
		if strings.HasPrefix(allowed, "*.") {
			suffix := allowed[1:] // ".example.com"
			if strings.HasSuffix(hostWithoutPort(originHost), suffix) {
				return true
			}
			continue
		}
		if strings.EqualFold(allowed, originHost) || strings.EqualFold(allowed, hostWithoutPort(originHost)) {
			return true
		}
	}
	return len(l.opts.AllowedOrigins) == 0
}

func hostWithoutPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
