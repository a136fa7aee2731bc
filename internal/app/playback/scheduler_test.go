package playback

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestTicker_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	tk := NewTicker(2*time.Millisecond, func() { calls.Add(1) })
	assert.False(t, tk.Running())

	tk.Start()
	tk.Start()
	assert.True(t, tk.Running())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	tk.Stop()
	tk.Wait()
	assert.False(t, tk.Running())

	n := calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, calls.Load(), "no ticks after stop")
}

func TestTicker_Restart(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	tk := NewTicker(2*time.Millisecond, func() { calls.Add(1) })

	tk.Start()
	tk.Stop()
	tk.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)

	tk.Stop()
	tk.Wait()
}

func TestTicker_StopFromCallback(t *testing.T) {
	defer goleak.VerifyNone(t)

	var tk *Ticker
	done := make(chan struct{})
	tk = NewTicker(time.Millisecond, func() {
		tk.Stop()
		select {
		case <-done:
		default:
			close(done)
		}
	})

	tk.Start()
	<-done
	tk.Wait()
	assert.False(t, tk.Running())
}

func TestTicker_DefaultInterval(t *testing.T) {
	tk := NewTicker(0, func() {})
	assert.Equal(t, DefaultTickInterval, tk.Interval())
}
