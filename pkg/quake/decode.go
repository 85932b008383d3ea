package quake

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// PlayerCountKey is the info key whose value, when present, must equal the
// number of decoded player lines.
const PlayerCountKey = "players"

var errUnterminatedQuote = errors.New("unterminated quote")

// Decode parses a stripped status payload: an info string line followed by
// one line per player.
func Decode(payload []byte, v Variant) (*Response, error) {
	payload = bytes.TrimRight(payload, "\x00")
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, decodeErrorf("empty payload")
	}

	lines := strings.Split(string(payload), "\n")

	info, err := ParseInfo(lines[0])
	if err != nil {
		return nil, err
	}

	parse := v.parsePlayer
	if parse == nil {
		parse = parseQuake3Player
	}

	players := make([]Player, 0, len(lines)-1)
	for n, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields, err := SplitFields(line)
		if err != nil {
			return nil, decodeErrorf("player line %d: %w", n+1, err)
		}

		p, err := parse(fields)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}

	if declared, ok := info[PlayerCountKey]; ok {
		count, err := strconv.Atoi(strings.TrimSpace(declared))
		if err != nil {
			return nil, decodeErrorf("bad %s value %q", PlayerCountKey, declared)
		}
		if count != len(players) {
			return nil, decodeErrorf("declared %d players, decoded %d", count, len(players))
		}
	}

	return &Response{
		Info:        info,
		Players:     players,
		stripColors: v.StripColors,
	}, nil
}

// ParseInfo parses a \key\value\key\value info string. A trailing delimiter is
// allowed; a key without a value is not.
func ParseInfo(line string) (map[string]string, error) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, `\`) {
		return nil, decodeErrorf("info string does not start with a backslash")
	}

	parts := strings.Split(line[1:], `\`)
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts)%2 != 0 {
		return nil, decodeErrorf("info string has key %q without value", parts[len(parts)-1])
	}

	info := make(map[string]string, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		if parts[i] == "" {
			return nil, decodeErrorf("info string has an empty key")
		}
		info[parts[i]] = parts[i+1]
	}

	return info, nil
}

// SplitFields tokenizes a player line on whitespace. Double quoted tokens keep
// their inner whitespace and lose the quotes.
func SplitFields(line string) ([]string, error) {
	var fields []string

	i := 0
	for i < len(line) {
		switch c := line[i]; {
		case c == ' ' || c == '\t' || c == '\r':
			i++

		case c == '"':
			end := strings.IndexByte(line[i+1:], '"')
			if end < 0 {
				return nil, errUnterminatedQuote
			}
			fields = append(fields, line[i+1:i+1+end])
			i += end + 2

		default:
			end := strings.IndexAny(line[i:], " \t\r")
			if end < 0 {
				end = len(line) - i
			}
			fields = append(fields, line[i:i+end])
			i += end
		}
	}

	return fields, nil
}
