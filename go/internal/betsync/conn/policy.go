package conn

import (
	"math/rand"
	"time"
)

// ReconnectPolicy bounds automatic reconnection after an unrequested
// disconnect. One policy object owns every backoff constant.
type ReconnectPolicy struct {
	MaxAttempts int           // attempts before giving up
	Delay       time.Duration // fixed delay between attempts
	Jitter      time.Duration // random extra delay, 0 disables
}

// DefaultReconnectPolicy returns the session-wide default: a single attempt
// after a fixed 3s delay. Mutations are never queued across the gap, so a
// longer fight for the connection buys nothing.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: 1,
		Delay:       3 * time.Second,
	}
}

// wait returns the delay before the next attempt.
func (p ReconnectPolicy) wait() time.Duration {
	d := p.Delay
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}
