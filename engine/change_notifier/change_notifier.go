package change_notifier

import (
	"errors"
	"fmt"
)

var (
	// ErrUnbalancedAtomic is the panic value (wrapped) raised when EndAtomic is called without a matching BeginAtomic.
	ErrUnbalancedAtomic = errors.New("change_notifier: EndAtomic without matching BeginAtomic")
)

// changeNotifier is the implementation of the ChangeNotifier interface.
type changeNotifier struct {
	label   string
	lock    int
	pending bool
	onFire  func()
}

// ChangeNotifier coalesces change notifications raised inside atomic sections.
// A change raised while no atomic section is open fires immediately; changes raised inside nested
// sections fire exactly once when the outermost section closes.
//
// ChangeNotifier is not goroutine-safe. It is meant to be embedded in render-loop owned objects.
type ChangeNotifier interface {
	// BeginAtomic opens an atomic section. Sections nest without limit.
	BeginAtomic()

	// EndAtomic closes the innermost atomic section. When the outermost section closes with a pending change,
	// the change fires once.
	// Panics with an error wrapping ErrUnbalancedAtomic when no section is open.
	EndAtomic()

	// InvokeChange signals a change. It fires immediately outside atomic sections, otherwise it is marked pending.
	InvokeChange()

	// Depth returns the number of currently open atomic sections.
	//
	// Returns:
	//   - int: the nesting depth
	Depth() int

	// Pending reports whether a change is waiting for the outermost section to close.
	//
	// Returns:
	//   - bool: true if a change is pending
	Pending() bool
}

var _ ChangeNotifier = &changeNotifier{}

// NewChangeNotifier creates a new ChangeNotifier that calls onFire for every coalesced change.
//
// Parameters:
//   - label: name used when reporting unbalanced sections
//   - onFire: callback invoked when a change fires, may be nil
//
// Returns:
//   - ChangeNotifier: the new notifier
func NewChangeNotifier(label string, onFire func()) ChangeNotifier {
	return &changeNotifier{label: label, onFire: onFire}
}

func (c *changeNotifier) BeginAtomic() {
	c.lock++
}

func (c *changeNotifier) EndAtomic() {
	if c.lock == 0 {
		panic(fmt.Errorf("%s: %w", c.label, ErrUnbalancedAtomic))
	}
	c.lock--
	if c.lock == 0 && c.pending {
		c.pending = false
		c.fire()
	}
}

func (c *changeNotifier) InvokeChange() {
	if c.lock > 0 {
		c.pending = true
		return
	}
	c.fire()
}

func (c *changeNotifier) Depth() int {
	return c.lock
}

func (c *changeNotifier) Pending() bool {
	return c.pending
}

func (c *changeNotifier) fire() {
	if c.onFire != nil {
		c.onFire()
	}
}
