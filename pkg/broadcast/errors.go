package broadcast

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned by Send when a listener's outbound queue has no room
	ErrQueueFull = errors.New("broadcast: listener queue full")

	// ErrListenerClosed is returned by Send after the listener disconnected
	ErrListenerClosed = errors.New("broadcast: listener closed")
)

// DeliveryError records a failed delivery to one listener.
// It never reaches the submitter; the registry logs and counts it.
type DeliveryError struct {
	Handle Handle
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to listener %s failed: %v", e.Handle, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
