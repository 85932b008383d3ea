package quake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, []byte("\xFF\xFF\xFF\xFFgetstatus\n"), Encode("getstatus", ""))
	assert.Equal(t, []byte("\xFF\xFF\xFF\xFFgetstatus 4213\n"), Encode("getstatus", "4213"))
}

func TestValidateAndStripRoundTrip(t *testing.T) {
	for _, cmd := range []string{"status", "getstatus", "getchallenge", "n"} {
		t.Run(cmd, func(t *testing.T) {
			payload, err := ValidateAndStrip(Encode(cmd, ""), cmd)
			require.NoError(t, err)
			assert.Empty(t, payload)

			payload, err = ValidateAndStrip(Encode(cmd, "abc"), cmd)
			require.NoError(t, err)
			assert.Equal(t, "abc\n", string(payload))
		})
	}
}

func TestValidateAndStripReply(t *testing.T) {
	payload, err := ValidateAndStrip([]byte("\xFF\xFF\xFF\xFFstatusResponse\n\\hostname\\x"), "statusResponse")
	require.NoError(t, err)
	assert.Equal(t, `\hostname\x`, string(payload))

	// QuakeWorld replies carry no separator after the token
	payload, err = ValidateAndStrip([]byte("\xFF\xFF\xFF\xFFn\\hostname\\x"), "n")
	require.NoError(t, err)
	assert.Equal(t, `\hostname\x`, string(payload))
}

func TestValidateAndStripRejects(t *testing.T) {
	tests := []struct {
		name   string
		packet []byte
	}{
		{"empty", nil},
		{"short marker", []byte{0xFF, 0xFF}},
		{"no marker", []byte("statusResponse\n\\hostname\\x")},
		{"split marker", []byte("\xFE\xFF\xFF\xFFstatusResponse\n")},
		{"wrong token", []byte("\xFF\xFF\xFF\xFFinfoResponse\n\\hostname\\x")},
		{"marker only", []byte("\xFF\xFF\xFF\xFF")},
		{"longer token", []byte("\xFF\xFF\xFF\xFFstatusResponses\n\\hostname\\x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAndStrip(tt.packet, "statusResponse")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProtocol)
			assert.NotErrorIs(t, err, ErrDecode)
		})
	}
}

func TestValidateAndStripTokenBoundary(t *testing.T) {
	_, err := ValidateAndStrip([]byte("\xFF\xFF\xFF\xFFnonsense"), "n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.NotErrorIs(t, err, ErrDecode)

	payload, err := ValidateAndStrip([]byte("\xFF\xFF\xFF\xFFn"), "n")
	require.NoError(t, err)
	assert.Empty(t, payload)

	// QuakeWorld challenge number follows its token directly
	payload, err = ValidateAndStrip([]byte("\xFF\xFF\xFF\xFFc4242"), "c")
	require.NoError(t, err)
	assert.Equal(t, "4242", string(payload))
}
