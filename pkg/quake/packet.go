package quake

import (
	"bytes"
)

// Marker prefixes every out-of-band packet, requests and replies alike.
var Marker = []byte{0xFF, 0xFF, 0xFF, 0xFF}

// MaxPacketSize is the receive buffer size for a single datagram.
const MaxPacketSize = 65507

// Encode frames a request: marker, command, optional space separated challenge
// token and a terminating newline.
func Encode(command, challenge string) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(Marker)+len(command)+len(challenge)+2))
	buf.Write(Marker)
	buf.WriteString(command)
	if challenge != "" {
		buf.WriteByte(' ')
		buf.WriteString(challenge)
	}
	buf.WriteByte('\n')

	return buf.Bytes()
}

// ValidateAndStrip checks that packet carries the marker followed by the
// expected command token and returns the payload after it. A single newline
// or space separating the token from the payload is removed as well.
//
// Any mismatch yields a KindProtocol error.
func ValidateAndStrip(packet []byte, command string) ([]byte, error) {
	if len(packet) < len(Marker) || !bytes.Equal(packet[:len(Marker)], Marker) {
		return nil, protocolErrorf("missing out-of-band marker")
	}

	rest := packet[len(Marker):]
	if command == "" || !bytes.HasPrefix(rest, []byte(command)) || !tokenEnds(rest[len(command):]) {
		return nil, protocolErrorf("unexpected command token %q, want %q", commandToken(rest), command)
	}

	rest = rest[len(command):]
	if len(rest) > 0 && (rest[0] == '\n' || rest[0] == ' ') {
		rest = rest[1:]
	}

	return rest, nil
}

// tokenEnds reports whether rest starts at a command token boundary. A digit
// counts as one since QuakeWorld glues the challenge number to its token.
func tokenEnds(rest []byte) bool {
	if len(rest) == 0 {
		return true
	}

	switch c := rest[0]; {
	case c == '\n', c == ' ', c == '\\':
		return true
	default:
		return c >= '0' && c <= '9'
	}
}

// commandToken returns the leading token of a reply, for error messages only.
func commandToken(b []byte) string {
	end := bytes.IndexAny(b, " \n\\")
	if end < 0 {
		end = len(b)
	}
	if end > 32 {
		end = 32
	}

	return string(b[:end])
}
