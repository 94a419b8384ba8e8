package webhook

import (
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
)

// WhatsApp Cloud API notification, reduced to the fields we apply.
type waPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Metadata struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
				} `json:"metadata"`
				Messages []waMessage `json:"messages"`
				Statuses []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type waMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (m waMessage) body() string {
	if m.Type == "text" || (m.Type == "" && m.Text.Body != "") {
		return m.Text.Body
	}
	return "[" + m.Type + "]"
}

// eventType names the delivery after its first change field.
func (p waPayload) eventType() string {
	for _, e := range p.Entry {
		for _, c := range e.Changes {
			if c.Field != "" {
				return c.Field
			}
		}
	}
	if p.Object != "" {
		return p.Object
	}
	return "unknown"
}

var waStatuses = map[string]string{
	"sent":      repo.MessageSent,
	"delivered": repo.MessageDelivered,
	"read":      repo.MessageRead,
	"failed":    repo.MessageFailed,
}

// Slack Events API envelope.
type slackPayload struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type    string `json:"type"`
		Subtype string `json:"subtype"`
		User    string `json:"user"`
		Channel string `json:"channel"`
		Text    string `json:"text"`
		TS      string `json:"ts"`
	} `json:"event"`
}

func (p slackPayload) eventType() string {
	if p.Type == "event_callback" && p.Event.Type != "" {
		return p.Event.Type
	}
	if p.Type != "" {
		return p.Type
	}
	return "unknown"
}
