package webchat

import (
	"github.com/wolfman30/clinic-site/internal/assistant"
)

// eventMessage maps a widget event onto the socket protocol.
func eventMessage(ev assistant.Event) OutboundMessage {
	out := OutboundMessage{Type: string(ev.Type), Busy: ev.Busy}
	switch ev.Type {
	case assistant.EventMessage:
		if ev.Message != nil {
			item := historyItem(*ev.Message)
			out.Role = item.Role
			out.Text = item.Text
			out.Timestamp = item.Timestamp
		}
	case assistant.EventStatus:
		out.Status = ev.Status
	}
	return out
}
