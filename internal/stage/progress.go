package stage

// Progress is one update from a running collaborator. Percent is in [0, 100]
// or negative when the collaborator cannot estimate completion.
type Progress struct {
	Percent float64
	Message string
}

// ProgressFunc receives progress updates. Collaborators call it from the
// goroutine that drives the external process, once per parsed output line.
type ProgressFunc func(Progress)

// Report invokes fn when it is non-nil and clamps Percent to 100.
func (fn ProgressFunc) Report(percent float64, message string) {
	if fn == nil {
		return
	}
	if percent > 100 {
		percent = 100
	}
	fn(Progress{Percent: percent, Message: message})
}
