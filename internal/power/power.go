// Package power isolates the irreversible host power-off action behind
// an interface so the watchdog loop can be tested without side effects.
package power

// Controller performs the host power-off.
type Controller interface {
	PowerOff() error
}

// Recorder is a test controller that only counts invocations.
type Recorder struct {
	Calls int
	Err   error
}

// PowerOff records the call and returns the configured error.
func (r *Recorder) PowerOff() error {
	r.Calls++
	return r.Err
}
