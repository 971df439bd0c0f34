package session

// EventType identifies what changed in a controller.
type EventType string

const (
	EventState        EventType = "state"
	EventConversation EventType = "conversation"
	EventSaved        EventType = "saved"
	EventError        EventType = "error"
)

// Event is delivered to subscribers after every observable change.
type Event struct {
	Type  EventType `json:"type"`
	State State     `json:"state"`
	Turns int       `json:"turns"`
	Error string    `json:"error,omitempty"`
}

// Subscribe registers fn for controller events and returns a func that
// removes it. fn runs synchronously while the controller is locked: it must
// not block or call back into the Controller.
func (c *Controller) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

// publish must be called with c.mu held.
func (c *Controller) publish(typ EventType, err error) {
	ev := Event{
		Type:  typ,
		State: c.state(),
		Turns: c.store.Len(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.emit(ev)
}

func (c *Controller) emit(ev Event) {
	c.subsMu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
