package sim

// DirectConnection connects components without latency. A message sent in
// one cycle is delivered in the same cycle, after all the components of the
// cycle have updated their states.
type DirectConnection struct {
	*TickingComponent

	nextPortID int
	ports      []Port
}

// NewDirectConnection creates a new DirectConnection object.
func NewDirectConnection(
	name string,
	engine Engine,
	freq Freq,
) *DirectConnection {
	c := new(DirectConnection)
	c.TickingComponent = NewSecondaryTickingComponent(name, engine, freq, c)
	return c
}

// PlugIn marks the port connected to this DirectConnection.
func (c *DirectConnection) PlugIn(port Port) {
	c.Lock()
	defer c.Unlock()

	c.ports = append(c.ports, port)
	port.SetConnection(c)
}

// Unplug marks the port no longer connected to this DirectConnection.
func (c *DirectConnection) Unplug(_ Port) {
	panic("not implemented")
}

// NotifyAvailable is called by a port to notify that the port can accept
// deliveries again.
func (c *DirectConnection) NotifyAvailable(p Port) {
	for _, port := range c.ports {
		if port == p {
			continue
		}

		port.NotifyAvailable()
	}

	c.TickNow()
}

// NotifySend is called by a port to notify that there is a message to
// deliver.
func (c *DirectConnection) NotifySend() {
	c.TickNow()
}

// Tick delivers the pending messages of all the plugged-in ports.
func (c *DirectConnection) Tick() bool {
	madeProgress := false

	for i := 0; i < len(c.ports); i++ {
		portID := (i + c.nextPortID) % len(c.ports)
		port := c.ports[portID]
		madeProgress = c.forwardMany(port) || madeProgress
	}

	c.nextPortID = (c.nextPortID + 1) % len(c.ports)

	return madeProgress
}

func (c *DirectConnection) forwardMany(port Port) bool {
	madeProgress := false

	for {
		head := port.PeekOutgoing()
		if head == nil {
			break
		}

		err := head.Meta().Dst.Deliver(head)
		if err != nil {
			break
		}

		port.RetrieveOutgoing()
		madeProgress = true
	}

	return madeProgress
}
