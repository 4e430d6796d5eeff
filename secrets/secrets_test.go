package secrets

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("12345678901234567890123456789012")

func TestNewBoxKeyLength(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{name: "32 bytes", key: testKey, wantErr: false},
		{name: "too short", key: []byte("short"), wantErr: true},
		{name: "24 bytes", key: bytes.Repeat([]byte("x"), 24), wantErr: true},
		{name: "33 bytes", key: bytes.Repeat([]byte("x"), 33), wantErr: true},
		{name: "empty", key: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBox(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	for _, plain := range []string{"", "x", "some-refresh-token", "çãé unicode"} {
		sealed, err := box.Seal(plain)
		require.NoError(t, err)

		got, err := box.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	a, err := box.Seal("token")
	require.NoError(t, err)
	b, err := box.Seal("token")
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func flipFirstByte(t *testing.T, b64 string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	raw[0] ^= 0x01
	return base64.StdEncoding.EncodeToString(raw)
}

func TestOpenTamperDetection(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	sealed, err := box.Seal("refresh-token")
	require.NoError(t, err)

	t.Run("flipped ciphertext", func(t *testing.T) {
		s := sealed
		s.Ciphertext = flipFirstByte(t, s.Ciphertext)
		_, err := box.Open(s)
		assert.ErrorIs(t, err, ErrIntegrity)
	})

	t.Run("flipped nonce", func(t *testing.T) {
		s := sealed
		s.Nonce = flipFirstByte(t, s.Nonce)
		_, err := box.Open(s)
		assert.ErrorIs(t, err, ErrIntegrity)
	})

	t.Run("flipped tag", func(t *testing.T) {
		s := sealed
		s.Tag = flipFirstByte(t, s.Tag)
		_, err := box.Open(s)
		assert.ErrorIs(t, err, ErrIntegrity)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewBox([]byte("abcdefghijklmnopqrstuvwxyz012345"))
		require.NoError(t, err)
		_, err = other.Open(sealed)
		assert.ErrorIs(t, err, ErrIntegrity)
	})

	t.Run("garbage base64", func(t *testing.T) {
		s := sealed
		s.Ciphertext = "not-base64!!!"
		_, err := box.Open(s)
		assert.ErrorIs(t, err, ErrIntegrity)
	})

	t.Run("truncated nonce", func(t *testing.T) {
		s := sealed
		s.Nonce = base64.StdEncoding.EncodeToString([]byte("short"))
		_, err := box.Open(s)
		assert.ErrorIs(t, err, ErrIntegrity)
	})
}
