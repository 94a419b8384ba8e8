package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/phone"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

type memStore struct {
	patients map[uuid.UUID]*repo.Patient
	messages []*repo.Message
}

func (m *memStore) Patient(_ context.Context, _, id uuid.UUID) (*repo.Patient, error) {
	if p, ok := m.patients[id]; ok {
		return p, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) Create(_ context.Context, msg *repo.Message) error {
	msg.ID = uuid.New()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memStore) Get(_ context.Context, _, id uuid.UUID) (*repo.Message, error) {
	for _, msg := range m.messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) List(_ context.Context, _ uuid.UUID, f repo.MessageFilter, _ repo.Page) ([]*repo.Message, int, error) {
	var out []*repo.Message
	for _, msg := range m.messages {
		if f.PatientID != nil && (msg.PatientID == nil || *msg.PatientID != *f.PatientID) {
			continue
		}
		out = append(out, msg)
	}
	return out, len(out), nil
}

func setup() (*memStore, *events.Recorder, Service, *reqctx.CenterScope, *repo.Patient) {
	center := uuid.New()
	mobile := "09121234567"
	p := &repo.Patient{ID: uuid.New(), CenterID: center, Phone: &mobile}
	store := &memStore{patients: map[uuid.UUID]*repo.Patient{p.ID: p}}
	rec := &events.Recorder{}
	cfg := &config.Config{WhatsApp: config.WhatsAppConfig{SenderNumber: "+982100000000"}}
	svc := New(store, phone.NewNormalizer("IR"), rec, cfg)
	return store, rec, svc, &reqctx.CenterScope{CenterID: center, MemberID: uuid.New(), Role: repo.RoleReceptionist}, p
}

func TestSendQueuesOutbound(t *testing.T) {
	_, rec, svc, scope, p := setup()
	ctx := context.Background()

	m, err := svc.Send(ctx, scope, SendRequest{PatientID: &p.ID, Channel: repo.ChannelWhatsApp, Body: " Your turn is next "})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.Status != repo.MessageQueued || m.Direction != repo.DirectionOutbound {
		t.Fatalf("message = %+v", m)
	}
	if m.ToAddress != "+989121234567" || m.FromAddress != "+982100000000" || m.Body != "Your turn is next" {
		t.Fatalf("addresses/body = %q %q %q", m.ToAddress, m.FromAddress, m.Body)
	}
	if len(rec.Events) != 1 || rec.Events[0].Type != events.MessageOutbound || rec.Events[0].EntityID != m.ID {
		t.Fatalf("events = %+v", rec.Events)
	}

	res, err := svc.List(ctx, scope, ListRequest{PatientID: &p.ID})
	if err != nil || res.Total != 1 {
		t.Fatalf("List = %+v, %v", res, err)
	}
}

func TestSendRejections(t *testing.T) {
	_, _, svc, scope, p := setup()
	missing := uuid.New()

	tests := []struct {
		name string
		req  SendRequest
		want error
	}{
		{"bad channel", SendRequest{Channel: "sms", To: "09121234567", Body: "x"}, ErrInvalidChannel},
		{"empty body", SendRequest{Channel: repo.ChannelWhatsApp, To: "09121234567", Body: "  "}, ErrBodyRequired},
		{"long body", SendRequest{Channel: repo.ChannelWhatsApp, To: "09121234567", Body: strings.Repeat("a", MaxBodyLength+1)}, ErrBodyTooLong},
		{"unknown patient", SendRequest{PatientID: &missing, Channel: repo.ChannelWhatsApp, Body: "x"}, ErrPatientNotFound},
		{"no recipient", SendRequest{Channel: repo.ChannelWhatsApp, Body: "x"}, ErrRecipientRequired},
		{"bad number", SendRequest{Channel: repo.ChannelWhatsApp, To: "12", Body: "x"}, ErrInvalidRecipient},
		{"slack needs channel", SendRequest{PatientID: &p.ID, Channel: repo.ChannelSlack, Body: "x"}, ErrRecipientRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Send(context.Background(), scope, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
