package ai

// MessageRole is the author of a prompt message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry of the conversation sent to a Generator.
type Message struct {
	Role    MessageRole
	Content string
}

// Fragment is one piece of a streamed answer.
// A Fragment with Err set is always the last one sent.
type Fragment struct {
	Content string
	Err     error
}

// Generation is a completed answer.
type Generation struct {
	Text       string
	Model      string
	TokensUsed int
}

// StreamBuffer is the capacity of fragment channels returned by GenerateStream.
const StreamBuffer = 64
