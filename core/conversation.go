package pipeline

import "github.com/jinzhu/copier"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of the surrounding conversation. The pipeline only
// reads messages; it never creates or mutates them.
type Message struct {
	ID      string
	Role    Role
	Content string
}

// newestAssistantReply returns the last message when it is a non-empty
// assistant reply, which is the only message the pipeline inspects.
func newestAssistantReply(messages []Message) (Message, bool) {
	if len(messages) == 0 {
		return Message{}, false
	}

	newest := messages[len(messages)-1]
	if newest.Role != RoleAssistant || newest.Content == "" {
		return Message{}, false
	}

	return newest, true
}

// copyMessages deep copies a message list so observers cannot alias the
// caller's slice.
func copyMessages(messages []Message) []Message {
	copied := []Message{}
	_ = copier.Copy(&copied, messages)
	return copied
}
