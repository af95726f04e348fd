package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns an opaque identifier such as "ses-5f0c...". It is used for
// sessions and print jobs, never for document numbers.
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return prefix + "-" + strings.ReplaceAll(id.String(), "-", "")
}

// Placeholder returns a display-only document number built from the last six
// digits of the millisecond clock, e.g. "INV-482913". Collisions are possible
// and harmless: the billing server assigns the real number.
func Placeholder(prefix string, now time.Time) string {
	ms := fmt.Sprintf("%06d", now.UnixMilli())
	return prefix + "-" + ms[len(ms)-6:]
}

// PlaceholderWithSuffix is Placeholder plus a short random tail.
func PlaceholderWithSuffix(prefix string, now time.Time) string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return Placeholder(prefix, now)
	}
	return Placeholder(prefix, now) + strings.ToUpper(hex.EncodeToString(buf))
}
