package phone

import (
	"errors"
	"testing"
)

func TestE164(t *testing.T) {
	n := NewNormalizer("ir")

	tests := []struct {
		name string
		in   string
		want string
		err  error
	}{
		{name: "national mobile", in: "09121234567", want: "+989121234567"},
		{name: "already e164", in: "+989121234567", want: "+989121234567"},
		{name: "whatsapp form", in: "989121234567", want: "+989121234567"},
		{name: "spaces", in: " 0912 123 4567 ", want: "+989121234567"},
		{name: "foreign", in: "+14155552671", want: "+14155552671"},
		{name: "empty", in: "", err: ErrInvalid},
		{name: "garbage", in: "not-a-number", err: ErrInvalid},
		{name: "too short", in: "0912", err: ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.E164(tt.in)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("E164(%q) error = %v, want %v", tt.in, err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("E164(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("E164(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOptional(t *testing.T) {
	n := NewNormalizer("")
	if n.Region() != "IR" {
		t.Fatalf("default region = %q, want IR", n.Region())
	}

	got, err := n.Optional(nil)
	if err != nil || got != nil {
		t.Fatalf("Optional(nil) = %v, %v", got, err)
	}
	blank := "  "
	if got, err := n.Optional(&blank); err != nil || got != nil {
		t.Fatalf("Optional(blank) = %v, %v", got, err)
	}
	raw := "09351234567"
	got, err = n.Optional(&raw)
	if err != nil || got == nil || *got != "+989351234567" {
		t.Fatalf("Optional(%q) = %v, %v", raw, got, err)
	}
}
