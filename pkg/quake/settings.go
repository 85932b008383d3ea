package quake

import "time"

const (
	// DefaultReadTimeout bounds each receive attempt.
	DefaultReadTimeout = 4 * time.Second

	// DefaultWriteTimeout bounds each send.
	DefaultWriteTimeout = 4 * time.Second

	// DefaultAttempts is the number of sends per exchange before a timeout is surfaced.
	DefaultAttempts = 3
)

// TimeoutSettings holds per-operation budgets. Zero values fall back to defaults.
type TimeoutSettings struct {
	Read     time.Duration `json:"read,omitempty" yaml:"read,omitempty"`
	Write    time.Duration `json:"write,omitempty" yaml:"write,omitempty"`
	Attempts int           `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// withDefaults returns a copy with unset fields filled in.
func (t TimeoutSettings) withDefaults() TimeoutSettings {
	if t.Read <= 0 {
		t.Read = DefaultReadTimeout
	}
	if t.Write <= 0 {
		t.Write = DefaultWriteTimeout
	}
	if t.Attempts <= 0 {
		t.Attempts = DefaultAttempts
	}

	return t
}

// ExchangeBudget returns the longest one request/reply exchange may take when
// every attempt times out.
func (t TimeoutSettings) ExchangeBudget() time.Duration {
	t = t.withDefaults()
	return time.Duration(t.Attempts) * (t.Write + t.Read)
}

// ExtraSettings are optional protocol-modulating inputs. The engine never mutates them.
type ExtraSettings struct {
	// Hostname the caller resolved the address from, for servers keyed on virtual hosting.
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`

	// Challenge forces the challenge handshake even when the variant does not require it.
	Challenge bool `json:"challenge,omitempty" yaml:"challenge,omitempty"`
}
