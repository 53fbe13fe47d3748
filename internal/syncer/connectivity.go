package syncer

import (
	"context"
	"net"
	"time"
)

// Probe reports whether the remote store is currently reachable.
type Probe func(ctx context.Context) bool

// DialProbe returns a Probe that attempts a TCP connection to addr.
func DialProbe(addr string, timeout time.Duration) Probe {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// WatchConnectivity polls the probe and calls the orchestrator on every
// offline-to-online transition, plus once at start when already online (the
// app-start trigger). It blocks until ctx is cancelled.
func (o *Orchestrator) WatchConnectivity(ctx context.Context, probe Probe, interval time.Duration) {
	online := probe(ctx)
	if online {
		o.SyncNow(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := probe(ctx)
			if now && !online {
				o.logger.Printf("connectivity regained, syncing")
				o.SyncNow(ctx)
			}
			online = now
		}
	}
}
