package sim

// MockEngine is created to simplify the unit tests of other packages. It
// collects the scheduled events without running them, and lets the test set
// the current time directly.
type MockEngine struct {
	NowTime VTimeInSec

	ScheduledEvents []Event
}

// NewMockEngine returns a new MockEngine.
func NewMockEngine() *MockEngine {
	e := new(MockEngine)
	e.ScheduledEvents = make([]Event, 0)
	return e
}

// Schedule of a MockEngine records the scheduled event.
func (e *MockEngine) Schedule(evt Event) {
	e.ScheduledEvents = append(e.ScheduledEvents, evt)
}

// CurrentTime returns the time configured in the mock.
func (e *MockEngine) CurrentTime() VTimeInSec {
	return e.NowTime
}

// Run of a MockEngine does not do anything.
func (e *MockEngine) Run() error {
	return nil
}
