package session

// Reporter forwards failures to an error tracker.
type Reporter interface {
	Capture(err error, tags map[string]string)
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Capture(error, map[string]string) {}
