package cookie_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restorelab/flagkit/pkg/cookie"
)

const (
	secretA = "0123456789abcdef0123456789abcdef"
	secretB = "fedcba9876543210fedcba9876543210"
)

func TestNewSigner(t *testing.T) {
	t.Parallel()

	_, err := cookie.NewSigner()
	require.ErrorIs(t, err, cookie.ErrNoSecret)

	_, err = cookie.NewSigner("", "")
	require.ErrorIs(t, err, cookie.ErrNoSecret)

	_, err = cookie.NewSigner("short")
	require.ErrorIs(t, err, cookie.ErrSecretTooShort)

	s, err := cookie.NewSigner("", secretA)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSignerRoundTrip(t *testing.T) {
	t.Parallel()

	s, err := cookie.NewSigner(secretA)
	require.NoError(t, err)

	signed := s.Sign([]byte(`{"deep-research":true}`))
	assert.Equal(t, 1, strings.Count(signed, "."))

	value, err := s.Verify(signed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"deep-research":true}`, string(value))
}

func TestSignerRejectsTampering(t *testing.T) {
	t.Parallel()

	s, err := cookie.NewSigner(secretA)
	require.NoError(t, err)
	signed := s.Sign([]byte("payload"))
	other, err := cookie.NewSigner(secretB)
	require.NoError(t, err)

	tests := []struct {
		name   string
		value  string
		signer *cookie.Signer
		err    error
	}{
		{name: "no separator", value: "abc", signer: s, err: cookie.ErrInvalidFormat},
		{name: "bad payload encoding", value: "!!!." + strings.SplitN(signed, ".", 2)[1], signer: s, err: cookie.ErrInvalidFormat},
		{name: "bad signature encoding", value: strings.SplitN(signed, ".", 2)[0] + ".***", signer: s, err: cookie.ErrInvalidFormat},
		{name: "altered payload", value: "YWx0ZXJlZA." + strings.SplitN(signed, ".", 2)[1], signer: s, err: cookie.ErrInvalidSignature},
		{name: "foreign secret", value: signed, signer: other, err: cookie.ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.signer.Verify(tt.value)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSignerRotation(t *testing.T) {
	t.Parallel()

	old, err := cookie.NewSigner(secretA)
	require.NoError(t, err)
	signed := old.Sign([]byte("v"))

	rotated, err := cookie.NewSigner(secretB, secretA)
	require.NoError(t, err)
	value, err := rotated.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "v", string(value))

	_, err = old.Verify(rotated.Sign([]byte("v")))
	require.ErrorIs(t, err, cookie.ErrInvalidSignature)
}
