package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
)

const minSecretLength = 32

// Signer produces tamper-evident cookie values with HMAC-SHA256.
// The first secret signs. Every secret verifies, so secrets can be rotated
// by prepending the new one.
type Signer struct {
	secrets [][]byte
}

// NewSigner validates secrets and returns a Signer. Empty secrets are dropped.
func NewSigner(secrets ...string) (*Signer, error) {
	secrets = slices.DeleteFunc(slices.Clone(secrets), func(s string) bool { return s == "" })
	if len(secrets) == 0 {
		return nil, ErrNoSecret
	}

	keys := make([][]byte, 0, len(secrets))
	for i, s := range secrets {
		if len(s) < minSecretLength {
			return nil, fmt.Errorf("%w: secret %d has %d chars, need at least %d", ErrSecretTooShort, i, len(s), minSecretLength)
		}
		keys = append(keys, []byte(s))
	}
	return &Signer{secrets: keys}, nil
}

// Sign encodes value as "<payload>.<mac>", both base64url without padding.
func (s *Signer) Sign(value []byte) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString(value) + "." + enc.EncodeToString(s.mac(s.secrets[0], value))
}

// Verify checks a signed value and returns its payload.
func (s *Signer) Verify(signed string) ([]byte, error) {
	payload, sig, ok := strings.Cut(signed, ".")
	if !ok {
		return nil, ErrInvalidFormat
	}

	enc := base64.RawURLEncoding
	value, err := enc.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	got, err := enc.DecodeString(sig)
	if err != nil {
		return nil, ErrInvalidFormat
	}

	for _, key := range s.secrets {
		if subtle.ConstantTimeCompare(got, s.mac(key, value)) == 1 {
			return value, nil
		}
	}
	return nil, ErrInvalidSignature
}

func (s *Signer) mac(key, value []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(value)
	return h.Sum(nil)
}
