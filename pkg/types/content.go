// Package types holds the data model shared across the turn engine: content
// blocks, messages, sessions, checkpoints and the option structs exchanged
// with the external agent runtime.
package types

import "encoding/json"

// ContentBlockType tags the variant carried by a ContentBlock.
type ContentBlockType string

const (
	BlockText       ContentBlockType = "text"
	BlockImage      ContentBlockType = "image"
	BlockToolUse    ContentBlockType = "tool_use"
	BlockToolResult ContentBlockType = "tool_result"
	BlockThinking   ContentBlockType = "thinking"
)

// ContentBlock is a tagged union over the five block variants the runtime
// and the store exchange. Only the fields relevant to Type are populated.
// Ordering within a Message's Blocks slice is significant and must be
// preserved verbatim through marshal/unmarshal.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Data      string `json:"data,omitempty"`
	MediaType string `json:"media_type,omitempty"`

	// tool_use
	ToolUseID string          `json:"id,omitempty"`
	ToolName  string          `json:"name,omitempty"`
	ToolInput json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseResultID string          `json:"tool_use_id,omitempty"`
	ResultContent   json.RawMessage `json:"content,omitempty"`
	IsError         bool            `json:"is_error,omitempty"`

	// thinking
	Thinking string `json:"thinking,omitempty"`
}

// TextBlock constructs a text ContentBlock.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageBlock constructs an image ContentBlock from a base64 payload.
func ImageBlock(base64Data, mediaType string) ContentBlock {
	return ContentBlock{Type: BlockImage, Data: base64Data, MediaType: mediaType}
}
