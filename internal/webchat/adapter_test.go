package webchat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wolfman30/clinic-site/internal/assistant"
)

func TestEventMessage(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	msg := eventMessage(assistant.Event{
		Type:    assistant.EventMessage,
		Message: &assistant.ChatMessage{Role: assistant.RoleModel, Text: "Booked.", Timestamp: ts},
	})
	assert.Equal(t, OutboundMessage{Type: "message", Role: "model", Text: "Booked.", Timestamp: "2026-03-01T09:30:00Z"}, msg)

	msg = eventMessage(assistant.Event{Type: assistant.EventStatus, Status: "Notifying Dr. Bhakat...", Busy: true})
	assert.Equal(t, "status", msg.Type)
	assert.Equal(t, "Notifying Dr. Bhakat...", msg.Status)
	assert.True(t, msg.Busy)
	assert.Empty(t, msg.Text)

	msg = eventMessage(assistant.Event{Type: assistant.EventBusy})
	assert.Equal(t, OutboundMessage{Type: "busy"}, msg)

	msg = eventMessage(assistant.Event{Type: assistant.EventMessage})
	assert.Equal(t, OutboundMessage{Type: "message"}, msg)
}
