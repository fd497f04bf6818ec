package assistant

import "slices"

// MaxTurnMessages is how many user/assistant messages are kept after the
// system prompt.
const MaxTurnMessages = 20

// History is a conversation: an optional leading system prompt followed by
// at most MaxTurnMessages user and assistant messages.
type History struct {
	messages []Message
}

func (h *History) Len() int {
	return len(h.messages)
}

func (h *History) Empty() bool {
	return len(h.messages) == 0
}

func (h *History) Push(m Message) {
	h.messages = append(h.messages, m)
}

// Trim keeps the system prompt and the newest MaxTurnMessages messages.
func (h *History) Trim() {
	if len(h.messages) <= MaxTurnMessages+1 {
		return
	}
	kept := make([]Message, 0, MaxTurnMessages+1)
	kept = append(kept, h.messages[0])
	kept = append(kept, h.messages[len(h.messages)-MaxTurnMessages:]...)
	h.messages = kept
}

// Messages returns a copy of the conversation.
func (h *History) Messages() []Message {
	return slices.Clone(h.messages)
}

func (h *History) Reset() {
	h.messages = nil
}
