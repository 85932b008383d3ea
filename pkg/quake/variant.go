package quake

import "strconv"

// Variant describes one member of the Quake protocol family.
// Variants are plain values; copy one and flip fields to derive another.
type Variant struct {
	// parsePlayer converts the tokens of one player line into a Player.
	parsePlayer func(fields []string) (Player, error)

	// Name is a short identifier used in logs and errors.
	Name string

	// Request is the status command sent to the server.
	Request string

	// Response is the command token expected at the start of a status reply.
	Response string

	// ChallengeRequest and ChallengeResponse frame the optional handshake.
	ChallengeRequest  string
	ChallengeResponse string

	// DefaultPort is the usual query port of the protocol.
	DefaultPort uint16

	// Challenge marks variants that need a token before answering a status request.
	Challenge bool

	// StripColors removes ^N color codes in the common projection.
	StripColors bool
}

var (
	// Quake1 is the QuakeWorld status protocol.
	Quake1 = Variant{
		Name:              "quake1",
		Request:           "status",
		Response:          "n",
		ChallengeRequest:  "getchallenge",
		ChallengeResponse: "c",
		DefaultPort:       27500,
		parsePlayer:       parseQuake1Player,
	}

	// Quake2 is the Quake II status protocol.
	Quake2 = Variant{
		Name:              "quake2",
		Request:           "status",
		Response:          "print",
		ChallengeRequest:  "getchallenge",
		ChallengeResponse: "challenge",
		DefaultPort:       27910,
		parsePlayer:       parseQuake2Player,
	}

	// Quake3 is the Quake III Arena status protocol and its many derivatives.
	Quake3 = Variant{
		Name:              "quake3",
		Request:           "getstatus",
		Response:          "statusResponse",
		ChallengeRequest:  "getchallenge",
		ChallengeResponse: "challengeResponse",
		DefaultPort:       27960,
		StripColors:       true,
		parsePlayer:       parseQuake3Player,
	}
)

// VariantByName returns a built-in variant.
func VariantByName(name string) (Variant, bool) {
	switch name {
	case Quake1.Name:
		return Quake1, true
	case Quake2.Name:
		return Quake2, true
	case Quake3.Name:
		return Quake3, true
	}

	return Variant{}, false
}

// id score time ping "name" "skin" top bottom
func parseQuake1Player(f []string) (Player, error) {
	if len(f) != 8 {
		return Player{}, decodeErrorf("quake1 player line has %d fields, want 8", len(f))
	}

	nums, err := atoiAll(f[0], f[1], f[2], f[3], f[6], f[7])
	if err != nil {
		return Player{}, err
	}

	return Player{
		ID:          intPtr(nums[0]),
		Score:       nums[1],
		Time:        intPtr(nums[2]),
		Ping:        nums[3],
		Name:        f[4],
		Skin:        f[5],
		TopColor:    intPtr(nums[4]),
		BottomColor: intPtr(nums[5]),
	}, nil
}

// score ping "name" ["address"]
func parseQuake2Player(f []string) (Player, error) {
	if len(f) != 3 && len(f) != 4 {
		return Player{}, decodeErrorf("quake2 player line has %d fields, want 3 or 4", len(f))
	}

	nums, err := atoiAll(f[0], f[1])
	if err != nil {
		return Player{}, err
	}

	p := Player{Score: nums[0], Ping: nums[1], Name: f[2]}
	if len(f) == 4 {
		p.Address = f[3]
	}

	return p, nil
}

// score ping "name"
func parseQuake3Player(f []string) (Player, error) {
	if len(f) != 3 {
		return Player{}, decodeErrorf("quake3 player line has %d fields, want 3", len(f))
	}

	nums, err := atoiAll(f[0], f[1])
	if err != nil {
		return Player{}, err
	}

	return Player{Score: nums[0], Ping: nums[1], Name: f[2]}, nil
}

func atoiAll(values ...string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, decodeErrorf("bad numeric player field %q", v)
		}
		out[i] = n
	}

	return out, nil
}

func intPtr(v int) *int { return &v }
