package sim

import (
	"fmt"
	"sync"
)

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// A Component is an element that is being simulated.
type Component interface {
	Named
	Handler

	Ports() []Port
	GetPortByName(name string) Port
	NotifyRecv(port Port)
	NotifyPortFree(port Port)
}

// ComponentBase provides some functions that other components can use.
type ComponentBase struct {
	sync.Mutex

	name      string
	ports     []Port
	portIndex map[string]Port
}

// NewComponentBase creates a new ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	c := new(ComponentBase)
	c.name = name
	c.portIndex = make(map[string]Port)
	return c
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}

// AddPort registers a port with the component.
func (c *ComponentBase) AddPort(port Port) {
	name := port.Name()
	if _, found := c.portIndex[name]; found {
		panic(fmt.Sprintf("port %s already added to %s", name, c.name))
	}

	c.ports = append(c.ports, port)
	c.portIndex[name] = port
}

// Ports returns the ports of the component.
func (c *ComponentBase) Ports() []Port {
	return c.ports
}

// GetPortByName returns the port by the name of the port.
func (c *ComponentBase) GetPortByName(name string) Port {
	port, found := c.portIndex[name]
	if !found {
		panic(fmt.Sprintf(
			"port %s is not available on component %s", name, c.name))
	}

	return port
}
