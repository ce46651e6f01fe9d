package fetch

import "time"

// Ticker delivers poll ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock supplies time and timers to the supervisor.
type Clock interface {
	Now() time.Time
	NewTicker(interval time.Duration) Ticker
	After(duration time.Duration) <-chan time.Time
}

// SystemClock implements Clock with the time package.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// NewTicker starts a ticker firing every interval.
func (SystemClock) NewTicker(interval time.Duration) Ticker {
	return systemTicker{ticker: time.NewTicker(interval)}
}

// After fires once after duration.
func (SystemClock) After(duration time.Duration) <-chan time.Time {
	return time.After(duration)
}

type systemTicker struct {
	ticker *time.Ticker
}

func (ticker systemTicker) C() <-chan time.Time {
	return ticker.ticker.C
}

func (ticker systemTicker) Stop() {
	ticker.ticker.Stop()
}
