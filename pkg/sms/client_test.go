package sms

import (
	"context"
	"testing"
	"time"

	"github.com/Alijeyrad/medcenter_backend/config"
)

func TestNewFromConfig_Disabled(t *testing.T) {
	cfg := config.SMSConfig{
		Enabled: false,
	}

	client, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}

	if client.IsEnabled() {
		t.Error("Expected client to be disabled")
	}
}

func TestNewFromConfig_EnabledWithoutAPIKey(t *testing.T) {
	cfg := config.SMSConfig{
		Enabled: true,
		SMSIR: config.SMSIRConfig{
			APIKey:                "",
			SecretKey:             "",
			TemplateID:            "test-template",
			AppointmentTemplateID: "appt-template",
		},
	}

	_, err := NewFromConfig(cfg)
	if err == nil {
		t.Error("Expected error when API key is missing")
	}
}

func TestNewFromConfig_EnabledWithAPIKey(t *testing.T) {
	cfg := config.SMSConfig{
		Enabled: true,
		SMSIR: config.SMSIRConfig{
			APIKey:     "test-api-key",
			SecretKey:  "test-secret-key",
			TemplateID: "test-template",
		},
	}

	client, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}

	if !client.IsEnabled() {
		t.Error("Expected client to be enabled")
	}
}

func TestSendTemplate_DisabledClient(t *testing.T) {
	client := &Client{enabled: false}

	err := client.SendTemplate(context.Background(), "+989121234567", "template-id", map[string]string{"name": "Sara"})
	if err != nil {
		t.Errorf("Expected no error for disabled client, got: %v", err)
	}
	err = client.SendAppointmentNotice(context.Background(), "+989121234567", "Sara", "Dr. Karimi", time.Now(), "confirmed")
	if err != nil {
		t.Errorf("Expected no error for disabled client, got: %v", err)
	}
}

func TestSendTemplate_Validation(t *testing.T) {
	client := &Client{enabled: true}

	tests := []struct {
		name       string
		phone      string
		templateID string
	}{
		{"empty phone number", "", "template-id"},
		{"empty template ID", "+989121234567", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.SendTemplate(context.Background(), tt.phone, tt.templateID, nil)
			if err == nil {
				t.Error("Expected error but got nil")
			}
		})
	}
}

func TestTemplateParams(t *testing.T) {
	params := templateParams(map[string]string{"name": "Sara", "time": "10:00"})
	if len(params) != 2 {
		t.Fatalf("len = %d, want 2", len(params))
	}
	got := map[string]string{}
	for _, p := range params {
		got[p.Key] = p.Value
	}
	if got["name"] != "Sara" || got["time"] != "10:00" {
		t.Errorf("unexpected params: %v", got)
	}
}

func TestIsEnabled(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
	}{
		{"enabled client", true},
		{"disabled client", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{enabled: tt.enabled}
			if client.IsEnabled() != tt.enabled {
				t.Errorf("Expected IsEnabled() = %v, got %v", tt.enabled, client.IsEnabled())
			}
		})
	}
}
