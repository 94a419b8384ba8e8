package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/pkg/crypto"
	"github.com/Alijeyrad/medcenter_backend/pkg/phone"
)

type memStore struct {
	events    []*repo.WebhookEvent
	processed map[uuid.UUID]bool
	patients  map[string]*repo.Patient
	messages  []*repo.Message
	external  map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		processed: map[uuid.UUID]bool{},
		patients:  map[string]*repo.Patient{},
		external:  map[string]string{},
	}
}

func (m *memStore) SaveEvent(_ context.Context, e *repo.WebhookEvent) error {
	e.ID = uuid.New()
	m.events = append(m.events, e)
	return nil
}

func (m *memStore) MarkProcessed(_ context.Context, id uuid.UUID) error {
	m.processed[id] = true
	return nil
}

func (m *memStore) FindPatientByPhone(_ context.Context, phone string) (*repo.Patient, error) {
	if p, ok := m.patients[phone]; ok {
		return p, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) CreateMessage(_ context.Context, msg *repo.Message) error {
	msg.ID = uuid.New()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memStore) SetStatusByExternalID(_ context.Context, externalID, status string) (bool, error) {
	if _, ok := m.external[externalID]; !ok {
		return false, nil
	}
	m.external[externalID] = status
	return true, nil
}

const (
	appSecret     = "wa-secret"
	signingSecret = "slack-secret"
)

func newService(store *memStore) *webhookService {
	cfg := &config.Config{
		WhatsApp: config.WhatsAppConfig{VerifyToken: "tok", AppSecret: appSecret},
		Slack:    config.SlackConfig{SigningSecret: signingSecret},
	}
	return New(store, phone.NewNormalizer("IR"), nil, cfg).(*webhookService)
}

func TestVerifyWhatsApp(t *testing.T) {
	svc := newService(newMemStore())
	if got, err := svc.VerifyWhatsApp("subscribe", "tok", "123"); err != nil || got != "123" {
		t.Fatalf("VerifyWhatsApp = %q, %v", got, err)
	}
	if _, err := svc.VerifyWhatsApp("subscribe", "nope", "123"); !errors.Is(err, ErrVerifyFailed) {
		t.Fatalf("wrong token: %v", err)
	}
	if _, err := svc.VerifyWhatsApp("unsubscribe", "tok", "123"); !errors.Is(err, ErrVerifyFailed) {
		t.Fatalf("wrong mode: %v", err)
	}
}

const waBody = `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{
"metadata":{"display_phone_number":"982100000000"},
"messages":[{"id":"wamid.IN1","from":"989121234567","type":"text","text":{"body":"hello"}},
            {"id":"wamid.IN2","from":"14155552671","type":"image"}],
"statuses":[{"id":"wamid.OUT1","status":"delivered"},{"id":"wamid.UNKNOWN","status":"read"},{"id":"wamid.OUT1","status":"deleted"}]}}]}]}`

func TestHandleWhatsApp(t *testing.T) {
	store := newMemStore()
	patient := &repo.Patient{ID: uuid.New(), CenterID: uuid.New()}
	store.patients["+989121234567"] = patient
	store.external["wamid.OUT1"] = repo.MessageSent
	svc := newService(store)

	sig := "sha256=" + crypto.SignHMACSHA256([]byte(appSecret), []byte(waBody))
	sum, err := svc.HandleWhatsApp(context.Background(), []byte(waBody), sig)
	if err != nil {
		t.Fatalf("HandleWhatsApp: %v", err)
	}
	if sum.Inbound != 2 || sum.Statuses != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if store.external["wamid.OUT1"] != repo.MessageDelivered {
		t.Fatalf("status = %s", store.external["wamid.OUT1"])
	}

	first := store.messages[0]
	if first.PatientID == nil || *first.PatientID != patient.ID || *first.CenterID != patient.CenterID {
		t.Fatalf("inbound not linked to patient: %+v", first)
	}
	if first.Body != "hello" || first.Status != repo.MessageReceived || first.Direction != repo.DirectionInbound {
		t.Fatalf("inbound = %+v", first)
	}
	if second := store.messages[1]; second.PatientID != nil || second.Body != "[image]" || second.FromAddress != "+14155552671" {
		t.Fatalf("unmatched inbound = %+v", second)
	}

	ev := store.events[0]
	if !ev.SignatureValid || ev.EventType != "messages" || !store.processed[ev.ID] {
		t.Fatalf("event = %+v processed=%v", ev, store.processed[ev.ID])
	}
}

func TestHandleWhatsAppBadSignature(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	for _, sig := range []string{"", "sha256=00", "deadbeef"} {
		if _, err := svc.HandleWhatsApp(context.Background(), []byte(waBody), sig); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("sig %q: err = %v", sig, err)
		}
	}
	if len(store.events) != 3 || store.events[0].SignatureValid {
		t.Fatalf("rejected deliveries must still be recorded: %d", len(store.events))
	}
	var meta struct {
		Size   int    `json:"size"`
		SHA256 string `json:"sha256"`
	}
	if err := json.Unmarshal(store.events[0].Payload, &meta); err != nil {
		t.Fatalf("decode rejected payload: %v", err)
	}
	digest := sha256.Sum256([]byte(waBody))
	if meta.Size != len(waBody) || meta.SHA256 != hex.EncodeToString(digest[:]) {
		t.Fatalf("rejected payload = %s", store.events[0].Payload)
	}
	if strings.Contains(string(store.events[0].Payload), "entry") || store.events[0].EventType != "" {
		t.Fatalf("unverified body content was stored: %+v", store.events[0])
	}
	if len(store.messages) != 0 || len(store.processed) != 0 {
		t.Fatal("rejected delivery was applied")
	}

	// Non-JSON bodies are kept under a raw key.
	body := []byte("not json")
	sig := "sha256=" + crypto.SignHMACSHA256([]byte(appSecret), body)
	if _, err := svc.HandleWhatsApp(context.Background(), body, sig); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("non-json: %v", err)
	}
	if got := string(store.events[3].Payload); got != `{"raw":"not json"}` {
		t.Fatalf("payload = %s", got)
	}
}

func slackSign(ts string, body []byte) string {
	return "v0=" + crypto.SignHMACSHA256([]byte(signingSecret), []byte("v0:"+ts+":"+string(body)))
}

func TestHandleSlack(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	fresh := strconv.FormatInt(now.Unix()-30, 10)
	stale := strconv.FormatInt(now.Unix()-int64(SlackMaxSkew.Seconds())-1, 10)

	verify := []byte(`{"type":"url_verification","challenge":"abc"}`)
	message := []byte(`{"type":"event_callback","event":{"type":"message","user":"U1","channel":"C1","text":"patient arrived","ts":"1.2"}}`)
	botEcho := []byte(`{"type":"event_callback","event":{"type":"message","subtype":"bot_message","text":"x"}}`)

	tests := []struct {
		name      string
		body      []byte
		ts        string
		sig       string
		want      error
		challenge string
		inbound   int
	}{
		{name: "url verification", body: verify, ts: fresh, challenge: "abc"},
		{name: "message", body: message, ts: fresh, inbound: 1},
		{name: "bot echo ignored", body: botEcho, ts: fresh},
		{name: "stale", body: message, ts: stale, want: ErrStaleTimestamp},
		{name: "bad signature", body: message, ts: fresh, sig: "v0=00", want: ErrInvalidSignature},
		{name: "missing timestamp", body: message, ts: "", want: ErrStaleTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newService(store)
			svc.now = func() time.Time { return now }

			sig := tt.sig
			if sig == "" {
				sig = slackSign(tt.ts, tt.body)
			}
			res, err := svc.HandleSlack(context.Background(), tt.body, tt.ts, sig)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("err = %v, want %v", err, tt.want)
				}
				if len(store.events) != 1 || store.events[0].SignatureValid {
					t.Fatalf("rejected delivery not stored as invalid")
				}
				return
			}
			if err != nil {
				t.Fatalf("HandleSlack: %v", err)
			}
			if res.Challenge != tt.challenge || res.Inbound != tt.inbound {
				t.Fatalf("result = %+v", res)
			}
		})
	}
}
