package generate

import "sync"

// DefaultMaxTurns bounds a conversation when no limit is configured.
const DefaultMaxTurns = 20

// Conversation is the ordered turn history of one client session.
// It is owned by a single session; the mutex only guards against a
// status reader observing it mid-append.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	maxTurns int
}

// NewConversation creates an empty history keeping at most maxTurns
// user/assistant exchanges. The oldest exchanges are dropped first.
func NewConversation(maxTurns int) *Conversation {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Conversation{maxTurns: maxTurns}
}

// Messages returns a copy of the history in chronological order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Append records one exchange.
func (c *Conversation) Append(user, assistant string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages,
		Message{Role: "user", Content: user},
		Message{Role: "assistant", Content: assistant},
	)
	if excess := len(c.messages) - 2*c.maxTurns; excess > 0 {
		c.messages = append([]Message(nil), c.messages[excess:]...)
	}
}

// Turns returns the number of recorded exchanges.
func (c *Conversation) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages) / 2
}
