package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(ts int64) time.Time {
	return time.Unix(ts, 0)
}

func TestWindowPausedIsNeverOpen(t *testing.T) {
	w := Window{OpensAt: 1000, Paused: true}
	for _, ts := range []int64{0, 999, 1000, 1_000_000} {
		assert.False(t, w.IsOpen(at(ts)), ts)
	}
}

func TestWindowOpensAtOpenTime(t *testing.T) {
	w := Window{OpensAt: 1000}

	assert.False(t, w.IsOpen(at(999)))
	assert.True(t, w.IsBeforeOpen(at(999)))
	assert.Equal(t, "0d 0h 0m 1s", w.OpensIn(at(999)))

	assert.True(t, w.IsOpen(at(1000)))
	assert.False(t, w.IsBeforeOpen(at(1000)))
	assert.Equal(t, time.Duration(0), w.UntilOpen(at(1000)))
	assert.True(t, w.IsOpen(at(5000)))
}

func TestWindowEarlyBuffer(t *testing.T) {
	w := Window{OpensAt: 1000, EarlyBuffer: 5 * time.Second}

	assert.False(t, w.IsOpen(at(994)))
	assert.True(t, w.IsOpen(at(995)))
	assert.False(t, w.IsBeforeOpen(at(995)))
	// countdown still targets the contract time
	assert.Equal(t, 5*time.Second, w.UntilOpen(at(995)))
}

func TestWindowUnscheduledAndClosing(t *testing.T) {
	unscheduled := Window{}
	assert.False(t, unscheduled.IsOpen(at(1000)))
	assert.False(t, unscheduled.IsBeforeOpen(at(1000)))
	assert.True(t, unscheduled.IsEnded(at(1000)))

	w := Window{OpensAt: 1000, ClosesAt: 2000}
	assert.True(t, w.IsOpen(at(1999)))
	assert.False(t, w.IsOpen(at(2000)))
	assert.True(t, w.IsEnded(at(2000)))
	assert.Equal(t, time.Second, w.UntilClose(at(1999)))
	assert.Equal(t, time.Duration(0), Window{OpensAt: 1}.UntilClose(at(10)))
}

func TestDeadline(t *testing.T) {
	d := Deadline{EndsAt: 1000}
	assert.True(t, d.Active(at(999)))
	assert.Equal(t, "0d 0h 0m 1s", d.EndsIn(at(999)))
	assert.False(t, d.Active(at(1000)))
	assert.Equal(t, time.Duration(0), d.Remaining(at(1200)))

	closed := Deadline{EndsAt: 1000, Closed: true}
	assert.False(t, closed.Active(at(10)))
}
