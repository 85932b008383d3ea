package quake

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitSample(t *testing.T) ([]byte, []Fragment) {
	t.Helper()

	packet := []byte("\xFF\xFF\xFF\xFFstatusResponse\n\\hostname\\Split Server\\players\\1\\\n7 30 \"alpha\"\n")
	datagrams := EncodeFragments(99, packet, 8)
	require.Greater(t, len(datagrams), 3)

	fragments := make([]Fragment, 0, len(datagrams))
	for _, d := range datagrams {
		f, err := ParseFragment(d)
		require.NoError(t, err)
		fragments = append(fragments, f)
	}

	return packet, fragments
}

func TestReassembleOrder(t *testing.T) {
	packet, fragments := splitSample(t)

	inOrder, err := Reassemble(fragments)
	require.NoError(t, err)
	assert.Equal(t, packet, inOrder)

	reversed := make([]Fragment, len(fragments))
	for i, f := range fragments {
		reversed[len(fragments)-1-i] = f
	}
	outOfOrder, err := Reassemble(reversed)
	require.NoError(t, err)
	assert.Equal(t, inOrder, outOfOrder)

	// interleave even and odd indexes
	var mixed []Fragment
	for i := 1; i < len(fragments); i += 2 {
		mixed = append(mixed, fragments[i])
	}
	for i := 0; i < len(fragments); i += 2 {
		mixed = append(mixed, fragments[i])
	}
	interleaved, err := Reassemble(mixed)
	require.NoError(t, err)
	assert.Equal(t, inOrder, interleaved)
}

func TestReassembleIncomplete(t *testing.T) {
	_, fragments := splitSample(t)

	_, err := Reassemble(fragments[1:])
	assert.Error(t, err)

	_, err = Reassemble(nil)
	assert.Error(t, err)

	dup := append([]Fragment{}, fragments...)
	dup[1] = dup[0]
	_, err = Reassemble(dup)
	assert.Error(t, err)
}

func TestParseFragmentRejects(t *testing.T) {
	for name, packet := range map[string][]byte{
		"short":          {0xFE, 0xFF, 0xFF, 0xFF, 1},
		"zero total":     {0xFE, 0xFF, 0xFF, 0xFF, 1, 0, 0, 0, 0, 0},
		"index >= total": {0xFE, 0xFF, 0xFF, 0xFF, 1, 0, 0, 0, 2, 2},
		"not a split":    bytes.Repeat([]byte{0xFF}, 12),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFragment(packet)
			assert.Error(t, err)
		})
	}
}

func TestReassemblerCollects(t *testing.T) {
	packet, fragments := splitSample(t)

	var asm reassembler
	for i := len(fragments) - 1; i > 0; i-- {
		_, done, err := asm.add(fragments[i])
		require.NoError(t, err)
		require.False(t, done)

		// duplicates are ignored
		_, done, err = asm.add(fragments[i])
		require.NoError(t, err)
		require.False(t, done)
	}

	full, done, err := asm.add(fragments[0])
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, packet, full)
	assert.Empty(t, asm.pending)
}

func TestReassemblerHoldsOneSequence(t *testing.T) {
	packet, fragments := splitSample(t)

	var asm reassembler
	for i := byte(0); i < 50; i++ {
		_, done, err := asm.add(Fragment{ID: uint32(1000 + int(i)), Total: 200, Index: i, Data: make([]byte, 1024)})
		require.NoError(t, err)
		require.False(t, done)
		require.Len(t, asm.pending, 1)
	}

	for i, f := range fragments {
		full, done, err := asm.add(f)
		require.NoError(t, err)
		if i < len(fragments)-1 {
			require.False(t, done)
			assert.Len(t, asm.pending, i+1)
			continue
		}
		require.True(t, done)
		assert.Equal(t, packet, full)
	}
}
