// Package probe reports whether outbound network access is usable.
package probe

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"fincache/internal/log"
)

// Probe is the connectivity check consulted before every remote call.
type Probe interface {
	IsOnline(ctx context.Context) bool
}

// Static always reports the same state.
type Static bool

func (s Static) IsOnline(context.Context) bool { return bool(s) }

// Toggle is a switchable probe, safe for concurrent use.
type Toggle struct {
	online atomic.Bool
}

func NewToggle(online bool) *Toggle {
	t := &Toggle{}
	t.online.Store(online)
	return t
}

func (t *Toggle) IsOnline(context.Context) bool { return t.online.Load() }

// Set changes the reported state.
func (t *Toggle) Set(online bool) { t.online.Store(online) }

// DefaultDialTTL is how long a Dial result is reused before dialing again.
const DefaultDialTTL = 5 * time.Second

// Dial checks connectivity by opening a TCP connection to Addr.
// Results are cached for TTL so bursts of calls share one dial.
type Dial struct {
	Addr    string
	Timeout time.Duration
	TTL     time.Duration

	dialer func(ctx context.Context, network, addr string) (net.Conn, error)
	now    func() time.Time
	logger *log.Logger

	mu        sync.Mutex
	checkedAt time.Time
	online    bool
}

// NewDial creates a dial probe. A zero timeout defaults to two seconds.
func NewDial(addr string, timeout time.Duration, logger *log.Logger) *Dial {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = log.Default(log.ComponentProbe)
	}
	d := &net.Dialer{}
	return &Dial{
		Addr:    addr,
		Timeout: timeout,
		TTL:     DefaultDialTTL,
		dialer:  d.DialContext,
		now:     time.Now,
		logger:  logger,
	}
}

func (d *Dial) IsOnline(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if !d.checkedAt.IsZero() && now.Sub(d.checkedAt) < d.TTL {
		return d.online
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	conn, err := d.dialer(dialCtx, "tcp", d.Addr)
	online := err == nil
	if conn != nil {
		conn.Close()
	}

	if online != d.online || d.checkedAt.IsZero() {
		d.logger.Info("Connectivity changed",
			"addr", d.Addr,
			"online", online,
			log.FieldError, err)
	}
	d.online = online
	d.checkedAt = now
	return online
}
