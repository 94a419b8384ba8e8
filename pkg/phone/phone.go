// Package phone normalises user-entered phone numbers to E.164.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalid = errors.New("invalid phone number")

// Normalizer parses numbers against a default region, used when the input
// carries no country code.
type Normalizer struct {
	region string
}

func NewNormalizer(defaultRegion string) *Normalizer {
	r := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if r == "" {
		r = "IR"
	}
	return &Normalizer{region: r}
}

func (n *Normalizer) Region() string { return n.region }

// E164 returns the number in +<country><national> form.
func (n *Normalizer) E164(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalid
	}
	// WhatsApp sends numbers without the leading plus.
	if !strings.HasPrefix(raw, "+") && !strings.HasPrefix(raw, "0") && len(raw) > 10 {
		raw = "+" + raw
	}
	num, err := phonenumbers.Parse(raw, n.region)
	if err != nil {
		return "", ErrInvalid
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalid
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Optional normalises a pointer field; nil or blank stays nil.
func (n *Normalizer) Optional(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v, err := n.E164(*raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
