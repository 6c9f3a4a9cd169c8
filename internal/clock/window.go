package clock

import (
	"time"

	"github.com/memecoin2016/meme-desk/internal/types"
)

// Window is a sale/claim window expressed in unix seconds. OpensAt == 0 means the window
// is not scheduled (closed); ClosesAt == 0 means it never closes.
type Window struct {
	OpensAt     int64
	ClosesAt    int64
	Paused      bool
	EarlyBuffer time.Duration
}

func (w Window) effectiveOpen() int64 {
	return w.OpensAt - int64(w.EarlyBuffer/time.Second)
}

func (w Window) IsOpen(now time.Time) bool {
	if w.Paused || w.OpensAt == 0 {
		return false
	}
	ts := now.Unix()
	if ts < w.effectiveOpen() {
		return false
	}
	return w.ClosesAt == 0 || ts < w.ClosesAt
}

// IsBeforeOpen is independent of Paused, a paused window can still be counting down.
func (w Window) IsBeforeOpen(now time.Time) bool {
	return w.OpensAt != 0 && now.Unix() < w.effectiveOpen()
}

func (w Window) IsEnded(now time.Time) bool {
	return w.OpensAt == 0 || (w.ClosesAt != 0 && now.Unix() >= w.ClosesAt)
}

// UntilOpen is measured against the contract open time, not the buffered one.
func (w Window) UntilOpen(now time.Time) time.Duration {
	return secondsUntil(w.OpensAt, now)
}

func (w Window) UntilClose(now time.Time) time.Duration {
	if w.ClosesAt == 0 {
		return 0
	}
	return secondsUntil(w.ClosesAt, now)
}

func (w Window) OpensIn(now time.Time) string {
	return types.FormatCountdown(w.UntilOpen(now))
}

// Deadline is a window that is open from the start until EndsAt, unless closed early.
type Deadline struct {
	EndsAt int64
	Closed bool
}

func (d Deadline) Active(now time.Time) bool {
	return !d.Closed && now.Unix() < d.EndsAt
}

func (d Deadline) Remaining(now time.Time) time.Duration {
	return secondsUntil(d.EndsAt, now)
}

func (d Deadline) EndsIn(now time.Time) string {
	return types.FormatCountdown(d.Remaining(now))
}

func secondsUntil(ts int64, now time.Time) time.Duration {
	d := ts - now.Unix()
	if d < 0 {
		d = 0
	}
	return time.Duration(d) * time.Second
}
