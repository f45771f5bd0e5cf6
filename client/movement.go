package client

import (
	"math"
	"sync"
	"time"

	"suteravr/internal/wire"
)

// minMoveInterval is the floor between two outbound movement events.
const minMoveInterval = 50 * time.Millisecond

// TransformEncoder rate-limits outbound movement. A pose is emitted at most
// once per minMoveInterval, and only when the position or yaw has drifted by
// more than 0.3/ln(1+elapsed_ms) since the last emission, so upstream
// bandwidth stays bounded under continuous motion.
type TransformEncoder struct {
	mu         sync.Mutex
	target     wire.StandingTransform
	lastSent   wire.StandingTransform
	lastSentAt time.Time

	now func() time.Time // stubbed in tests
}

func NewTransformEncoder() *TransformEncoder {
	e := &TransformEncoder{now: time.Now}
	e.lastSentAt = e.now()
	return e
}

// Push records the latest pose as the send candidate.
func (e *TransformEncoder) Push(target wire.StandingTransform) {
	e.mu.Lock()
	e.target = target
	e.mu.Unlock()
}

// Payload returns the pose to send, or false when the current candidate is
// not yet worth emitting.
func (e *TransformEncoder) Payload() (wire.StandingTransform, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := e.now().Sub(e.lastSentAt)
	if elapsed < minMoveInterval {
		return wire.StandingTransform{}, false
	}

	threshold := 0.3 / math.Log1p(float64(elapsed.Milliseconds()))
	dx := e.target.X - e.lastSent.X
	dy := e.target.Y - e.lastSent.Y
	dz := e.target.Z - e.lastSent.Z
	dyaw := math.Abs(e.target.Yaw - e.lastSent.Yaw)

	if dx*dx+dy*dy+dz*dz > threshold*threshold || dyaw > threshold {
		e.lastSentAt = e.now()
		e.lastSent = e.target
		return e.target, true
	}
	return wire.StandingTransform{}, false
}
