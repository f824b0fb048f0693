package idgen

import (
	"crypto/rand"
	"fmt"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// GenerateSecureID generates a cryptographically secure ID with the given prefix and length.
// Uses only alphanumeric characters (0-9, a-z).
func GenerateSecureID(prefix string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid id length %d", length)
	}
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	const charset = "0123456789abcdefghijklmnopqrstuvwxyz"
	encoded := make([]byte, length)
	for i := 0; i < length; i++ {
		encoded[i] = charset[bytes[i]%byte(len(charset))]
	}

	return fmt.Sprintf("%s_%s", prefix, string(encoded)), nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewMessageID returns a lowercase ULID prefixed with "msg_".
// IDs generated by one process sort in creation order.
func NewMessageID() string {
	return NewTimeOrderedID("msg", time.Now())
}

// NewTimeOrderedID returns prefix_<ulid> for the given instant.
func NewTimeOrderedID(prefix string, at time.Time) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(at), entropy)
	entropyMu.Unlock()
	return prefix + "_" + strings.ToLower(id.String())
}

// ParseTimeOrderedID strips the prefix and returns the ULID.
func ParseTimeOrderedID(prefix, value string) (ulid.ULID, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, prefix+"_") {
		return ulid.ULID{}, fmt.Errorf("id %q does not start with %s_", value, prefix)
	}
	return ulid.Parse(strings.ToUpper(strings.TrimPrefix(value, prefix+"_")))
}
