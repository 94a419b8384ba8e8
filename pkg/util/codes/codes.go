package codes

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	// FileNumberLength is the random part of a patient file number
	FileNumberLength = 8

	// Upper case alphanumeric excluding ambiguous characters
	charsetUpperAlphanumeric = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

var reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateFileNumber creates a patient file number such as "P-7K2M9QXA".
// Uniqueness per center is enforced by the database.
func GenerateFileNumber() (string, error) {
	code, err := generateFromCharset(FileNumberLength, charsetUpperAlphanumeric)
	if err != nil {
		return "", err
	}
	return "P-" + code, nil
}

// Slugify lower-cases s and joins its ASCII letters and digits with dashes.
// Returns "" when nothing usable remains.
func Slugify(s string) string {
	s = reNonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = strings.Trim(s, "-")
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	return s
}

// SlugWithSuffix appends a short random suffix, used after a slug collision.
func SlugWithSuffix(slug string) (string, error) {
	suffix, err := generateFromCharset(4, "abcdefghjkmnpqrstuvwxyz23456789")
	if err != nil {
		return "", err
	}
	if slug == "" {
		return "center-" + suffix, nil
	}
	return slug + "-" + suffix, nil
}

func generateFromCharset(length int, charset string) (string, error) {
	result := make([]byte, length)
	max := big.NewInt(int64(len(charset)))

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random character: %w", err)
		}
		result[i] = charset[n.Int64()]
	}

	return string(result), nil
}
