package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/arsmn/go-smsir/smsir"

	"github.com/Alijeyrad/medcenter_backend/config"
)

// Client provides SMS sending functionality via sms.ir.
type Client struct {
	client              *smsir.Client
	enabled             bool
	appointmentTemplate string
}

// NewFromConfig creates a new SMS client from the application configuration.
// If SMS is disabled, returns a client that no-ops on all operations.
func NewFromConfig(cfg config.SMSConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{enabled: false}, nil
	}

	if cfg.SMSIR.APIKey == "" {
		return nil, fmt.Errorf("sms.ir API key required when SMS enabled")
	}

	client := smsir.NewClient().WithAuthentication(cfg.SMSIR.APIKey, cfg.SMSIR.SecretKey)

	return &Client{
		client:              client,
		enabled:             true,
		appointmentTemplate: cfg.SMSIR.AppointmentTemplateID,
	}, nil
}

// SendTemplate sends an ultra-fast template message with the given parameters.
// If SMS is disabled, this is a no-op and returns nil.
func (c *Client) SendTemplate(ctx context.Context, phoneNumber, templateID string, params map[string]string) error {
	if !c.enabled {
		return nil
	}

	if phoneNumber == "" {
		return fmt.Errorf("phone number is required")
	}
	if templateID == "" {
		return fmt.Errorf("template ID is required")
	}

	req := &smsir.UltraFastSendRequest{
		Mobile:     phoneNumber,
		TemplateID: templateID,
		Parameters: templateParams(params),
	}

	if _, err := c.client.Verification.UltraFastSend(ctx, req); err != nil {
		return fmt.Errorf("sms.ir send failed: %w", err)
	}
	return nil
}

// SendAppointmentNotice tells a patient about a booked or cancelled appointment.
// The template receives "name", "doctor", "time" and "status".
func (c *Client) SendAppointmentNotice(ctx context.Context, phoneNumber, patientName, doctorName string, at time.Time, status string) error {
	if !c.enabled {
		return nil
	}
	return c.SendTemplate(ctx, phoneNumber, c.appointmentTemplate, map[string]string{
		"name":   patientName,
		"doctor": doctorName,
		"time":   at.Format("2006-01-02 15:04"),
		"status": status,
	})
}

// IsEnabled returns whether SMS sending is enabled.
func (c *Client) IsEnabled() bool {
	return c.enabled
}

func templateParams(params map[string]string) []smsir.UltraFastParameter {
	out := make([]smsir.UltraFastParameter, 0, len(params))
	for k, v := range params {
		out = append(out, smsir.UltraFastParameter{Key: k, Value: v})
	}
	return out
}
