package quake

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"
)

// SplitMarker prefixes one fragment of a reply too large for a single datagram.
//
// Fragment layout: SplitMarker, uint32 LE sequence id, uint8 total, uint8 index,
// then the chunk. Chunks ordered by index form one ordinary Marker packet.
var SplitMarker = []byte{0xFE, 0xFF, 0xFF, 0xFF}

// FragmentHeaderSize is the size of the fragment header including SplitMarker.
const FragmentHeaderSize = 4 + 4 + 1 + 1

var errBadFragment = errors.New("malformed fragment header")

// Fragment is one piece of a split reply.
type Fragment struct {
	Data  []byte
	ID    uint32
	Total uint8
	Index uint8
}

// IsFragment reports whether the datagram starts with SplitMarker.
func IsFragment(packet []byte) bool {
	return len(packet) >= len(SplitMarker) && bytes.Equal(packet[:len(SplitMarker)], SplitMarker)
}

// ParseFragment decodes the fragment header of a split datagram.
func ParseFragment(packet []byte) (Fragment, error) {
	if !IsFragment(packet) || len(packet) < FragmentHeaderSize {
		return Fragment{}, errBadFragment
	}

	f := Fragment{
		ID:    binary.LittleEndian.Uint32(packet[4:8]),
		Total: packet[8],
		Index: packet[9],
		Data:  packet[FragmentHeaderSize:],
	}
	if f.Total == 0 || f.Index >= f.Total {
		return Fragment{}, errBadFragment
	}

	return f, nil
}

// EncodeFragments splits packet into datagrams carrying at most chunk payload
// bytes each. Servers and tests use it; the engine only ever reassembles.
func EncodeFragments(id uint32, packet []byte, chunk int) [][]byte {
	if chunk <= 0 {
		chunk = 1
	}
	total := (len(packet) + chunk - 1) / chunk
	if total == 0 {
		total = 1
	}
	if total > 255 {
		return nil
	}

	out := make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		start := i * chunk
		end := min(start+chunk, len(packet))

		b := make([]byte, FragmentHeaderSize, FragmentHeaderSize+end-start)
		copy(b, SplitMarker)
		binary.LittleEndian.PutUint32(b[4:8], id)
		b[8] = byte(total)
		b[9] = byte(i)
		out = append(out, append(b, packet[start:end]...))
	}

	return out
}

// Reassemble orders fragments by index and concatenates their chunks.
// Fragments must share one sequence id and cover every index exactly once.
func Reassemble(fragments []Fragment) ([]byte, error) {
	if len(fragments) == 0 {
		return nil, errBadFragment
	}

	id, total := fragments[0].ID, fragments[0].Total
	if len(fragments) != int(total) {
		return nil, errBadFragment
	}

	ordered := make([]Fragment, len(fragments))
	copy(ordered, fragments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var buf bytes.Buffer
	for i, f := range ordered {
		if f.ID != id || f.Total != total || int(f.Index) != i {
			return nil, errBadFragment
		}
		buf.Write(f.Data)
	}

	return buf.Bytes(), nil
}

// reassembler collects the fragments of one sequence at a time. A fragment of
// another sequence id discards the pieces buffered so far, so at most one
// sequence is held in memory.
type reassembler struct {
	pending []Fragment
	id      uint32
}

// add stores f and returns the complete packet once every index of its
// sequence has arrived. Duplicate indexes are dropped.
func (r *reassembler) add(f Fragment) ([]byte, bool, error) {
	if len(r.pending) > 0 && r.id != f.ID {
		r.pending = r.pending[:0]
	}
	r.id = f.ID

	for _, have := range r.pending {
		if have.Index == f.Index {
			return nil, false, nil
		}
	}
	// keep a private copy, the read buffer is reused
	f.Data = append([]byte(nil), f.Data...)
	r.pending = append(r.pending, f)

	if len(r.pending) < int(f.Total) {
		return nil, false, nil
	}

	list := r.pending
	r.pending = nil
	packet, err := Reassemble(list)
	if err != nil {
		return nil, false, err
	}

	return packet, true, nil
}
