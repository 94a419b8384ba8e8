package s3

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/config"
)

func TestInsuranceDocumentKey(t *testing.T) {
	center := uuid.New()
	req := uuid.New()
	prefix := "insurance/" + center.String() + "/" + req.String() + "/"

	tests := []struct {
		name    string
		file    string
		wantExt string
	}{
		{"pdf", "referral.PDF", ".pdf"},
		{"no extension", "scan", ""},
		{"windows path", `C:\docs\id-card.jpg`, ".jpg"},
		{"path traversal", "../../etc/passwd.png", ".png"},
		{"absurd extension", "x.aaaaaaaaaaaaaaa", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := InsuranceDocumentKey(center, req, tt.file)
			if !strings.HasPrefix(key, prefix) {
				t.Fatalf("key %q missing prefix %q", key, prefix)
			}
			rest := strings.TrimPrefix(key, prefix)
			if strings.Contains(rest, "/") {
				t.Errorf("key %q has extra path segments", key)
			}
			if !strings.HasSuffix(rest, tt.wantExt) {
				t.Errorf("key %q, want extension %q", key, tt.wantExt)
			}
			if _, err := uuid.Parse(strings.TrimSuffix(rest, tt.wantExt)); err != nil {
				t.Errorf("key %q object name is not a uuid: %v", key, err)
			}
		})
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(config.S3Config{}); err == nil {
		t.Error("expected error without bucket")
	}
}

func TestPresignUsesEndpointAndBucket(t *testing.T) {
	c, err := New(config.S3Config{
		Endpoint:        "https://s3.example.test",
		Region:          "us-east-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		Bucket:          "docs",
		PresignTTLSec:   60,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	url, err := c.PresignDownload(context.Background(), "insurance/a/b/c.pdf")
	if err != nil {
		t.Fatalf("PresignDownload: %v", err)
	}
	if !strings.HasPrefix(url, "https://s3.example.test/docs/insurance/a/b/c.pdf?") {
		t.Errorf("unexpected presigned url %q", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=60") {
		t.Errorf("presigned url %q missing expiry", url)
	}
}
