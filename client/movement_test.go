package client

import (
	"testing"
	"time"

	"suteravr/internal/wire"
)

// testClock drives a TransformEncoder deterministically.
type testClock struct {
	now time.Time
}

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEncoder() (*TransformEncoder, *testClock) {
	clock := &testClock{now: time.Unix(1000, 0)}
	e := &TransformEncoder{now: func() time.Time { return clock.now }}
	e.lastSentAt = clock.now
	return e, clock
}

func TestEncoderGatesBelowMinInterval(t *testing.T) {
	e, clock := newTestEncoder()

	e.Push(wire.StandingTransform{X: 100})
	if _, ok := e.Payload(); ok {
		t.Error("emitted before the 50 ms floor")
	}

	clock.advance(49 * time.Millisecond)
	if _, ok := e.Payload(); ok {
		t.Error("emitted at 49 ms")
	}
}

func TestEncoderEmitsLargeMove(t *testing.T) {
	e, clock := newTestEncoder()

	target := wire.StandingTransform{X: 1}
	e.Push(target)
	clock.advance(60 * time.Millisecond)

	got, ok := e.Payload()
	if !ok {
		t.Fatal("large move was gated")
	}
	if got != target {
		t.Errorf("got %+v, want %+v", got, target)
	}

	// The emission resets the clock: an immediate retry is gated.
	e.Push(wire.StandingTransform{X: 2})
	if _, ok := e.Payload(); ok {
		t.Error("emitted immediately after a send")
	}
}

func TestEncoderGatesTinyMove(t *testing.T) {
	e, clock := newTestEncoder()

	// At 60 ms the threshold is 0.3/ln(61) ≈ 0.073.
	e.Push(wire.StandingTransform{X: 0.01})
	clock.advance(60 * time.Millisecond)
	if _, ok := e.Payload(); ok {
		t.Error("sub-threshold move emitted")
	}
}

func TestEncoderEmitsYawChange(t *testing.T) {
	e, clock := newTestEncoder()

	e.Push(wire.StandingTransform{Yaw: 0.2})
	clock.advance(60 * time.Millisecond)
	if _, ok := e.Payload(); !ok {
		t.Error("yaw change above threshold was gated")
	}
}

// The threshold shrinks as time passes, so a small drift eventually clears it.
func TestEncoderThresholdDecays(t *testing.T) {
	e, clock := newTestEncoder()

	e.Push(wire.StandingTransform{X: 0.05})
	clock.advance(60 * time.Millisecond)
	if _, ok := e.Payload(); ok {
		t.Fatal("0.05 at 60 ms should be below threshold")
	}

	// At 10 s the threshold is 0.3/ln(10001) ≈ 0.033.
	clock.advance(10 * time.Second)
	if _, ok := e.Payload(); !ok {
		t.Error("0.05 at 10 s should clear the threshold")
	}
}

func TestEncoderUnchangedPoseNeverEmits(t *testing.T) {
	e, clock := newTestEncoder()

	e.Push(wire.StandingTransform{})
	clock.advance(time.Hour)
	if _, ok := e.Payload(); ok {
		t.Error("identical pose emitted")
	}
}
