package cryptox

import (
	"crypto/rand"
	"fmt"
)

// linkCodeCharset deliberately omits visually ambiguous characters
// (0/O, 1/I/l) since link codes are read and typed by humans.
const linkCodeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateLinkCode returns a human-readable random code of the given
// length drawn from an unambiguous alphanumeric charset.
func GenerateLinkCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("link code length must be positive, got %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate link code: %w", err)
	}
	for i, b := range buf {
		buf[i] = linkCodeCharset[int(b)%len(linkCodeCharset)]
	}
	return string(buf), nil
}
