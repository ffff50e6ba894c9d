package seal

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{
			name: "valid 32-byte key",
			key:  testKey(),
		},
		{
			name:    "not base64",
			key:     "%%%not-base64%%%",
			wantErr: ErrInvalidKey,
		},
		{
			name:    "wrong length",
			key:     base64.StdEncoding.EncodeToString([]byte("short")),
			wantErr: ErrInvalidKey,
		},
		{
			name:    "empty key",
			key:     "",
			wantErr: ErrInvalidKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.key)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, s)
			} else {
				require.NoError(t, err)
				require.NotNil(t, s)
			}
		})
	}
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := New(testKey())
	require.NoError(t, err)

	sealed, err := s.Seal("registry-token-abc")
	require.NoError(t, err)
	assert.NotEqual(t, "registry-token-abc", sealed)

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "registry-token-abc", opened)
}

func TestSealer_SealIsNotDeterministic(t *testing.T) {
	s, err := New(testKey())
	require.NoError(t, err)

	first, err := s.Seal("token")
	require.NoError(t, err)
	second, err := s.Seal("token")
	require.NoError(t, err)

	// Random nonces: the same plaintext never seals to the same value.
	assert.NotEqual(t, first, second)
}

func TestSealer_Open_Malformed(t *testing.T) {
	s, err := New(testKey())
	require.NoError(t, err)

	tests := []struct {
		name   string
		sealed string
	}{
		{name: "not base64", sealed: "!!!"},
		{name: "too short", sealed: base64.StdEncoding.EncodeToString([]byte("tiny"))},
		{name: "tampered ciphertext", sealed: func() string {
			v, err := s.Seal("token")
			require.NoError(t, err)
			raw, _ := base64.StdEncoding.DecodeString(v)
			raw[len(raw)-1] ^= 0xff
			return base64.StdEncoding.EncodeToString(raw)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Open(tt.sealed)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestSealer_Open_WrongKey(t *testing.T) {
	s1, err := New(testKey())
	require.NoError(t, err)

	otherKey := base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210"))
	s2, err := New(otherKey)
	require.NoError(t, err)

	sealed, err := s1.Seal("token")
	require.NoError(t, err)

	_, err = s2.Open(sealed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}
