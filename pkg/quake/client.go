package quake

import (
	"net/netip"

	"github.com/rs/zerolog"
)

// State is a step of a single query.
type State int

const (
	StateIdle State = iota
	StateChallenge
	StateRequesting
	StateDecoding
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChallenge:
		return "challenge"
	case StateRequesting:
		return "requesting"
	case StateDecoding:
		return "decoding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Client holds read-only query configuration. It keeps no per-query state, so
// one Client may serve concurrent queries to different servers.
type Client struct {
	// Logger receives packet dumps at trace level and retries at debug level.
	// The zero value discards everything.
	Logger zerolog.Logger

	Extra    ExtraSettings
	Timeouts TimeoutSettings
	Variant  Variant
}

// New returns a Client for variant v with default timeouts.
func New(v Variant) *Client {
	return &Client{Variant: v, Logger: zerolog.Nop()}
}

// Query sends one status request to ip:port and decodes the reply.
// A zero port selects the variant's default port.
func (c *Client) Query(ip netip.Addr, port uint16) (*Response, error) {
	if port == 0 {
		port = c.Variant.DefaultPort
	}

	q := &query{client: c, target: netip.AddrPortFrom(ip, port)}
	return q.run()
}

// Query is a one-shot helper around Client. Nil settings mean defaults.
func Query(v Variant, ip netip.Addr, port uint16, timeouts *TimeoutSettings, extra *ExtraSettings) (*Response, error) {
	c := New(v)
	if timeouts != nil {
		c.Timeouts = *timeouts
	}
	if extra != nil {
		c.Extra = *extra
	}

	return c.Query(ip, port)
}

// query walks Idle -> (Challenge) -> Requesting -> Decoding -> Done once;
// any failure ends in Failed.
type query struct {
	client *Client
	target netip.AddrPort
	state  State
}

func (q *query) run() (resp *Response, err error) {
	defer func() {
		if err != nil {
			q.enter(StateFailed)
		}
	}()

	c := q.client
	sess, err := openSession(q.target, c.Timeouts, c.Logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()

	var token string
	if c.Variant.Challenge || c.Extra.Challenge {
		q.enter(StateChallenge)
		if token, err = obtainChallenge(sess, c.Variant); err != nil {
			return nil, err
		}
	}

	q.enter(StateRequesting)
	payload, rtt, err := sess.exchange("status", Encode(c.Variant.Request, token), c.Variant.Response)
	if err != nil {
		return nil, err
	}

	q.enter(StateDecoding)
	resp, err = Decode(payload, c.Variant)
	if err != nil {
		return nil, err
	}
	resp.Ping = rtt

	q.enter(StateDone)
	return resp, nil
}

func (q *query) enter(s State) {
	q.client.Logger.Trace().
		Str("variant", q.client.Variant.Name).
		Str("target", q.target.String()).
		Stringer("from", q.state).
		Stringer("to", s).
		Msg("Query state")
	q.state = s
}
