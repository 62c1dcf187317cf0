package api

import (
	"errors"
	"sync"

	"labmap/pkg/dashboard"
	"labmap/pkg/labs"
)

// Load phases reported to the page while it waits on the spinner.
const (
	PhaseLoading = "loading"
	PhaseReady   = "ready"
	PhaseFailed  = "failed"
)

// Readiness publishes the outcome of the one-shot startup load. It
// settles exactly once; there is no retry.
type Readiness struct {
	once sync.Once
	done chan struct{}
	dash *dashboard.Dashboard
	err  error
}

// NewReadiness returns a Readiness in the loading phase.
func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// Ready publishes the dashboard.
func (r *Readiness) Ready(d *dashboard.Dashboard) {
	r.once.Do(func() {
		r.dash = d
		close(r.done)
	})
}

// Fail records the terminal load error.
func (r *Readiness) Fail(err error) {
	if err == nil {
		err = errors.New("load failed")
	}
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Done is closed once the load settled either way.
func (r *Readiness) Done() <-chan struct{} { return r.done }

// Current returns the phase and, when ready, the dashboard.
func (r *Readiness) Current() (string, *dashboard.Dashboard, error) {
	select {
	case <-r.done:
	default:
		return PhaseLoading, nil, nil
	}
	if r.err != nil {
		return PhaseFailed, nil, r.err
	}
	return PhaseReady, r.dash, nil
}

// failureText is what the error panel shows. The source location stays
// in the server log.
func failureText(err error) string {
	var le *labs.LoadError
	if errors.As(err, &le) {
		switch le.Kind {
		case labs.LoadStatus:
			return "Error loading lab data: the data source answered with an error."
		case labs.LoadParse:
			return "Error loading lab data: the data source is not a valid lab list."
		}
	}
	return "Error loading lab data. Please reload the page later."
}
