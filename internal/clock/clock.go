package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

const TickInterval = time.Second

// Countdown is the single process-wide "now" source. It ticks once per second while at
// least one subscriber is attached and stops when the last one leaves.
type Countdown struct {
	clock clockwork.Clock

	mu      sync.Mutex
	subs    map[uint64]chan time.Time
	nextID  uint64
	latest  time.Time
	stop    chan struct{}
	stopped chan struct{}
}

func NewCountdown(clock clockwork.Clock) *Countdown {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Countdown{
		clock: clock,
		subs:  make(map[uint64]chan time.Time),
	}
}

// Now returns the latest tick while ticking, otherwise the underlying clock.
func (c *Countdown) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil && !c.latest.IsZero() {
		return c.latest
	}
	return c.clock.Now()
}

// Unix is Now in whole seconds, the unit every window is expressed in.
func (c *Countdown) Unix() int64 {
	return c.Now().Unix()
}

// Subscribe attaches a consumer. The returned channel holds at most the newest tick and is
// closed by cancel; cancel is idempotent.
func (c *Countdown) Subscribe() (<-chan time.Time, func()) {
	ch := make(chan time.Time, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	if c.stop == nil {
		c.start()
	}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.unsubscribe(id)
		})
	}
	return ch, cancel
}

func (c *Countdown) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Running reports whether the ticker goroutine is alive.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *Countdown) unsubscribe(id uint64) {
	c.mu.Lock()
	ch, ok := c.subs[id]
	if ok {
		delete(c.subs, id)
		close(ch)
	}
	var stopped chan struct{}
	if len(c.subs) == 0 && c.stop != nil {
		close(c.stop)
		stopped = c.stopped
		c.stop = nil
		c.stopped = nil
		c.latest = time.Time{}
	}
	c.mu.Unlock()

	if stopped != nil {
		<-stopped
		log.Debug("Countdown clock stopped, no consumer left")
	}
}

// start must be called with mu held.
func (c *Countdown) start() {
	stop := make(chan struct{})
	stopped := make(chan struct{})
	c.stop = stop
	c.stopped = stopped
	c.latest = c.clock.Now()

	ticker := c.clock.NewTicker(TickInterval)
	go func() {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case t := <-ticker.Chan():
				c.broadcast(stop, t)
			}
		}
	}()
	log.Debug("Countdown clock started")
}

func (c *Countdown) broadcast(stop chan struct{}, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// a tick racing with the last unsubscribe belongs to a finished run
	if c.stop != stop {
		return
	}
	c.latest = t
	for _, ch := range c.subs {
		// keep only the newest tick for slow consumers
		select {
		case <-ch:
		default:
		}
		ch <- t
	}
}
