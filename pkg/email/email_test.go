package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Alijeyrad/medcenter_backend/config"
)

func TestBuildMemberInviteEmail(t *testing.T) {
	m := BuildMemberInviteEmail(InviteEmailData{
		FirstName:         "<Sara>",
		Email:             "sara@example.com",
		CenterName:        "North Clinic",
		Role:              "doctor",
		TemporaryPassword: "Tmp-Pass-123",
		LoginURL:          "https://app.example.com/login",
	})

	if len(m.To) != 1 || m.To[0] != "sara@example.com" {
		t.Errorf("To = %v", m.To)
	}
	if !strings.Contains(m.Subject, "North Clinic") {
		t.Errorf("Subject = %q", m.Subject)
	}
	if !strings.Contains(m.TextBody, "Tmp-Pass-123") || !strings.Contains(m.HTMLBody, "Tmp-Pass-123") {
		t.Error("temporary password missing from body")
	}
	if strings.Contains(m.HTMLBody, "<Sara>") {
		t.Error("HTML body is not escaped")
	}
}

func TestBuildMessage(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		msg     Message
		wantErr bool
	}{
		{"valid text", "noreply@example.com", Message{To: []string{"a@b.c"}, Subject: "s", TextBody: "t"}, false},
		{"valid html", "noreply@example.com", Message{To: []string{" a@b.c "}, Subject: "s", HTMLBody: "<p>x</p>"}, false},
		{"missing from", "", Message{To: []string{"a@b.c"}, Subject: "s", TextBody: "t"}, true},
		{"missing subject", "noreply@example.com", Message{To: []string{"a@b.c"}, TextBody: "t"}, true},
		{"missing body", "noreply@example.com", Message{To: []string{"a@b.c"}, Subject: "s"}, true},
		{"blank recipients", "noreply@example.com", Message{To: []string{" "}, Subject: "s", TextBody: "t"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildMessage(tt.from, tt.msg)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSendDisabled(t *testing.T) {
	c, _ := New(config.EmailConfig{Enabled: false})
	err := c.Send(context.Background(), BuildPaymentReceiptEmail(ReceiptEmailData{Email: "a@b.c", InvoiceNumber: "INV-2026-000001"}))
	if !errors.As(err, &ErrDisabled{}) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}
