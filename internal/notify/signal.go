package notify

// Signal is a Listener backed by a one-slot channel. Bursts of changes
// coalesce into a single pending wake-up, so OnChanged never blocks.
type Signal struct {
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

func (s *Signal) OnChanged() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C receives once per burst of changes.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}
