package types

import "encoding/json"

// Role identifies who authored a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one role-tagged turn in a session. Content is either a plain
// string (Text, the common case for a simple user turn) or an ordered slice
// of ContentBlocks (Blocks: images, tool use/result, thinking). MarshalJSON
// writes Blocks when it is non-empty and Text otherwise, so a Message that
// carries both round-trips with Blocks only; UnmarshalJSON restores
// whichever shape is on the wire.
type Message struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionID"`
	Role      Role       `json:"role"`
	Text      string     `json:"-"`
	Blocks    []ContentBlock `json:"-"`
	Timestamp int64      `json:"timestamp"`

	// Usage is populated for assistant messages only.
	Usage *UsageStats `json:"usage,omitempty"`
}

// UsageStats captures accounting for one assistant message.
type UsageStats struct {
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	CostUSD      float64 `json:"costUsd"`
	DurationMS   int64   `json:"durationMs"`
}

// wireMessage is the on-disk/on-wire shape of Message: content is either a
// bare JSON string or a JSON array of blocks, matching the spec's
// StreamMessage/Message content field.
type wireMessage struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionID"`
	Role      Role            `json:"role"`
	Content   json.RawMessage `json:"content"`
	Timestamp int64           `json:"timestamp"`
	Usage     *UsageStats     `json:"usage,omitempty"`
}

// MarshalJSON writes Content as a bare string when the message has no
// blocks, or as a JSON array of blocks otherwise.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{ID: m.ID, SessionID: m.SessionID, Role: m.Role, Timestamp: m.Timestamp, Usage: m.Usage}
	if len(m.Blocks) > 0 {
		raw, err := json.Marshal(m.Blocks)
		if err != nil {
			return nil, err
		}
		w.Content = raw
	} else {
		raw, err := json.Marshal(m.Text)
		if err != nil {
			return nil, err
		}
		w.Content = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores Content into either Text or Blocks depending on
// whether the wire payload is a JSON string or a JSON array.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.ID = w.ID
	m.SessionID = w.SessionID
	m.Role = w.Role
	m.Timestamp = w.Timestamp
	m.Usage = w.Usage
	m.Text = ""
	m.Blocks = nil

	if len(w.Content) == 0 {
		return nil
	}
	switch w.Content[0] {
	case '"':
		return json.Unmarshal(w.Content, &m.Text)
	case '[':
		return json.Unmarshal(w.Content, &m.Blocks)
	default:
		return json.Unmarshal(w.Content, &m.Text)
	}
}
