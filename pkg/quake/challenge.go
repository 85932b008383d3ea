package quake

import (
	"errors"
	"strings"
)

var errEmptyChallenge = errors.New("empty challenge token")

// obtainChallenge performs the getchallenge round trip and returns the token
// the server expects on the following status request. It runs with its own
// attempt budget.
func obtainChallenge(s *session, v Variant) (string, error) {
	payload, _, err := s.exchange("challenge", Encode(v.ChallengeRequest, ""), v.ChallengeResponse)
	if err != nil {
		return "", err
	}

	fields := strings.Fields(string(payload))
	if len(fields) == 0 {
		return "", newError(KindDecode, "challenge", errEmptyChallenge)
	}

	return fields[0], nil
}
