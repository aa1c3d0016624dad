package sim

// SendError marks a failed send or receive.
type SendError struct{}

// NewSendError creates a SendError.
func NewSendError() *SendError {
	e := new(SendError)
	return e
}

// A Connection is responsible for delivering messages to their destinations.
type Connection interface {
	Named

	PlugIn(port Port)
	Unplug(port Port)

	// NotifyAvailable is called by a port to notify that the port can accept
	// deliveries again.
	NotifyAvailable(port Port)

	// NotifySend is called by a port to notify that there is a new message
	// in its outgoing buffer.
	NotifySend()
}
