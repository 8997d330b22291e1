package core

// Part is a polymorphic segment of user or tool-result content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string `json:"text"`
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// ImagePart is an inline image attachment.
type ImagePart struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64 encoded bytes
}

// isPart implements the Part interface for ImagePart.
func (ImagePart) isPart() {}

// Block is a polymorphic segment of assistant content. Like Part the set is
// closed: streaming adapters only ever produce these three shapes.
type Block interface{ isBlock() }

// TextBlock is visible assistant prose.
type TextBlock struct {
	Text string `json:"text"`
}

// isBlock implements the Block interface for TextBlock.
func (TextBlock) isBlock() {}

// ThinkingBlock is provider reasoning output. Adapters may omit these
// entirely; consumers must not rely on their presence.
type ThinkingBlock struct {
	Thinking string `json:"thinking"`
}

// isBlock implements the Block interface for ThinkingBlock.
func (ThinkingBlock) isBlock() {}

// ToolCallBlock is a request to execute a named tool. Arguments is the raw
// JSON argument payload as produced by the provider; it may be incomplete
// while the message is still streaming.
type ToolCallBlock struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// isBlock implements the Block interface for ToolCallBlock.
func (ToolCallBlock) isBlock() {}
