package clock

import "time"

// WallClock defines an interface for getting the current real time.
// This allows us to inject a fake time during unit tests.
type WallClock interface {
	Now() time.Time
}

// RealClock implements WallClock using the actual server system time.
type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now()
}

// MockClock implements WallClock for testing specific scenarios.
// e.g., "Pretend four real seconds elapsed between ticks"
type MockClock struct {
	MockTime time.Time
}

func (m *MockClock) Now() time.Time {
	return m.MockTime
}

// Advance moves the mocked wall clock forward.
func (m *MockClock) Advance(d time.Duration) {
	m.MockTime = m.MockTime.Add(d)
}
