package phone

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"call-screener/internal/config"
	"call-screener/internal/models"
)

const (
	minDigits = 8
	maxDigits = 15

	// bare national numbers in this range get the home prefix
	minNationalDigits = 7
	maxNationalDigits = 11
)

// Hasher turns raw caller numbers into E.164 strings and keyed one-way hashes.
// It is the only component that ever sees a raw number.
type Hasher struct {
	homePrefix string
	key        []byte
}

// NewHasher creates a hasher bound to the installation's home prefix and salt
func NewHasher(cfg *config.PhoneConfig) *Hasher {
	return &Hasher{
		homePrefix: cfg.HomePrefix,
		key:        []byte(cfg.Salt),
	}
}

// HomePrefix returns the configured home calling-code prefix, e.g. "+91"
func (h *Hasher) HomePrefix() string {
	return h.homePrefix
}

// Normalize converts raw into E.164 using the hasher's home prefix
func (h *Hasher) Normalize(raw string) (string, bool) {
	return Normalize(raw, h.homePrefix)
}

// Hash normalizes raw and returns its lowercase hex HMAC-SHA256
func (h *Hasher) Hash(raw string) (string, bool) {
	e164, ok := h.Normalize(raw)
	if !ok {
		return "", false
	}
	return h.HashE164(e164), true
}

// HashE164 hashes an already-normalized number
func (h *Hasher) HashE164(e164 string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(e164))
	return hex.EncodeToString(mac.Sum(nil))
}

// Identify builds the per-call identity. A nil raw means the caller ID was withheld.
func (h *Hasher) Identify(raw *string) models.CallerIdentity {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return models.CallerIdentity{}
	}

	identity := models.CallerIdentity{RawNumberPresent: true}
	if e164, ok := h.Normalize(*raw); ok {
		identity.NormalizedE164 = e164
		identity.NumberHash = h.HashE164(e164)
	}
	return identity
}

// Normalize converts raw into E.164 given a home prefix such as "+44".
// It fails when the result does not carry between 8 and 15 digits.
func Normalize(raw, homePrefix string) (string, bool) {
	raw = strings.TrimSpace(raw)
	plus := strings.HasPrefix(raw, "+")

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", false
	}

	var e164 string
	switch {
	case plus:
		e164 = "+" + digits
	case digits[0] == '0':
		e164 = homePrefix + digits[1:]
	case len(digits) >= minNationalDigits && len(digits) <= maxNationalDigits:
		e164 = homePrefix + digits
	default:
		e164 = "+" + digits
	}

	n := len(e164) - 1
	if n < minDigits || n > maxDigits {
		return "", false
	}
	return e164, true
}

// ShortHash truncates a hash for log fields
func ShortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// ValidHash reports whether s looks like a hash produced by HashE164
func ValidHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
