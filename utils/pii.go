package utils

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// NormalizePhone strips formatting so "+351 911-111 111" and
// "+351911111111" are the same guest. A leading + is kept.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	var b strings.Builder
	b.Grow(len(phone))
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneHasher pseudonymizes phone numbers for logs.
type PhoneHasher struct {
	key []byte
}

func NewPhoneHasher(key string) *PhoneHasher {
	k := []byte(key)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum256(k)
		k = sum[:]
	}
	return &PhoneHasher{key: k}
}

// Hash returns a short stable token for phone; empty input stays empty.
func (h *PhoneHasher) Hash(phone string) string {
	if phone == "" {
		return ""
	}
	var key []byte
	if h != nil {
		key = h.key
	}
	mac, err := blake2b.New256(key)
	if err != nil {
		sum := blake2b.Sum256([]byte(phone))
		return hex.EncodeToString(sum[:6])
	}
	mac.Write([]byte(phone))
	return hex.EncodeToString(mac.Sum(nil)[:6])
}
