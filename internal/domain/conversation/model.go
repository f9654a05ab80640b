package conversation

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

// Message is one immutable transcript entry.
type Message struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patientId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reply is the outcome of one gateway invocation.
type Reply struct {
	ResponseText       string
	UserMessageID      uuid.UUID
	AssistantMessageID uuid.UUID
	// Fallback is set when ResponseText is a canned reply standing in for a
	// failed inference call.
	Fallback bool
}
