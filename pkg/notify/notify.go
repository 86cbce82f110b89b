// Package notify carries user-facing notifications out of the lifecycle
// manager. The manager never renders anything itself; it hands a Notification
// to a Notifier and the surface decides how to show it.
package notify

// Type classifies a notification for the rendering surface.
type Type string

const (
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
)

// Notification is a single user-facing message.
type Notification struct {
	Type        Type
	Message     string
	Description string
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// Channel is a Notifier that buffers notifications on a channel. When the
// buffer is full the oldest notification is dropped so the producer never
// blocks.
type Channel struct {
	ch chan Notification
}

// NewChannel returns a Channel with the given buffer size.
func NewChannel(size int) *Channel {
	if size < 1 {
		size = 1
	}
	return &Channel{ch: make(chan Notification, size)}
}

func (c *Channel) Notify(n Notification) {
	for {
		select {
		case c.ch <- n:
			return
		default:
			select {
			case <-c.ch:
			default:
			}
		}
	}
}

// C returns the receive side of the channel.
func (c *Channel) C() <-chan Notification {
	return c.ch
}

// Discard is a Notifier that drops everything.
type Discard struct{}

func (Discard) Notify(Notification) {}
