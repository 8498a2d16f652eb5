// Package notify tells readers that ledger data changed. No payload is
// sent: listeners re-query whatever they display.
package notify

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Listener is notified after every committed change.
type Listener interface {
	OnChanged()
}

// Notifier is an ordered set of listeners.
type Notifier struct {
	mu        sync.Mutex
	listeners []Listener
	logger    *zap.Logger
}

// NewNotifier returns an empty Notifier. A nil logger is replaced by a no-op one.
func NewNotifier(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger}
}

// Add registers l. It returns false when l is nil, already registered, or
// not a pointer.
func (n *Notifier) Add(l Listener) bool {
	if !identifiable(l) {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.listeners {
		if existing == l {
			return false
		}
	}
	n.listeners = append(n.listeners, l)
	return true
}

// Remove unregisters l and reports whether it was registered.
func (n *Notifier) Remove(l Listener) bool {
	if !identifiable(l) {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, existing := range n.listeners {
		if existing == l {
			n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// identifiable reports whether l is a pointer. == on other listener values
// can panic when they hold a map or slice behind an interface field.
func identifiable(l Listener) bool {
	return l != nil && reflect.TypeOf(l).Kind() == reflect.Pointer
}

func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

// Notify calls every listener synchronously in registration order. The set
// is snapshotted first so listeners may add or remove listeners. A panicking
// listener is logged and does not stop the fan-out.
func (n *Notifier) Notify() {
	n.mu.Lock()
	snapshot := make([]Listener, len(n.listeners))
	copy(snapshot, n.listeners)
	n.mu.Unlock()

	for _, l := range snapshot {
		n.dispatch(l)
	}
}

func (n *Notifier) dispatch(l Listener) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("change listener panicked",
				zap.String("listener", reflect.TypeOf(l).String()),
				zap.Any("panic", r),
			)
		}
	}()
	l.OnChanged()
}
