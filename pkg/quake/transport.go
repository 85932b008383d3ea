package quake

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// errAttemptTimeout ends one receive attempt; it never leaves the package.
var errAttemptTimeout = errors.New("attempt timed out")

// session owns one unconnected datagram socket for the lifetime of a query.
type session struct {
	logger   zerolog.Logger
	conn     *net.UDPConn
	target   netip.AddrPort
	timeouts TimeoutSettings

	// answered holds reply tokens of finished exchanges; late copies of
	// those replies are stale, not malformed.
	answered []string
}

// openSession binds an ephemeral local port. The caller must Close it.
func openSession(target netip.AddrPort, timeouts TimeoutSettings, logger zerolog.Logger) (*session, error) {
	target = netip.AddrPortFrom(target.Addr().Unmap(), target.Port())
	if !target.IsValid() || target.Port() == 0 {
		return nil, newError(KindSocket, "bind", fmt.Errorf("invalid target address %s", target))
	}

	network := "udp4"
	if target.Addr().Is6() {
		network = "udp6"
	}

	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, newError(KindSocket, "bind", err)
	}

	return &session{
		conn:     conn,
		target:   target,
		timeouts: timeouts.withDefaults(),
		logger:   logger,
	}, nil
}

// Close releases the socket.
func (s *session) Close() error {
	return s.conn.Close()
}

// exchange sends request and waits for a reply carrying command, resending the
// same request on each timed out attempt. It returns the stripped payload and
// the round trip of the successful attempt.
func (s *session) exchange(op string, request []byte, command string) ([]byte, time.Duration, error) {
	var (
		asm      reassembler
		rejected error
	)

	for attempt := 1; attempt <= s.timeouts.Attempts; attempt++ {
		sent := time.Now()
		if err := s.send(op, request); err != nil {
			return nil, 0, err
		}

		payload, err := s.receive(op, &asm, command, &rejected)
		if err == nil {
			s.answered = append(s.answered, command)
			return payload, time.Since(sent), nil
		}
		if !errors.Is(err, errAttemptTimeout) {
			return nil, 0, err
		}

		// data arrived but none of it was conformant
		if rejected != nil {
			return nil, 0, rejected
		}

		if attempt < s.timeouts.Attempts {
			s.logger.Debug().
				Str("op", op).
				Int("attempt", attempt).
				Int("attempts", s.timeouts.Attempts).
				Msg("No reply, retrying")
		}
	}

	return nil, 0, newError(KindTimeout, op,
		fmt.Errorf("no reply from %s after %d attempts", s.target, s.timeouts.Attempts))
}

func (s *session) send(op string, request []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeouts.Write)); err != nil {
		return newError(KindSocket, op, err)
	}

	s.logPacket("send packet", request)
	if _, err := s.conn.WriteToUDPAddrPort(request, s.target); err != nil {
		return newError(KindSocket, op, err)
	}

	return nil
}

// receive reads datagrams until a conformant reply arrives or the per-attempt
// read timeout elapses. Datagrams from other endpoints are ignored; malformed
// ones are discarded and remembered in rejected.
func (s *session) receive(op string, asm *reassembler, command string, rejected *error) ([]byte, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeouts.Read)); err != nil {
		return nil, newError(KindSocket, op, err)
	}

	buf := make([]byte, MaxPacketSize)
	for {
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if isTimeout(err) {
				return nil, errAttemptTimeout
			}
			return nil, newError(KindSocket, op, err)
		}

		if from.Addr().Unmap() != s.target.Addr() || from.Port() != s.target.Port() {
			s.logger.Trace().Str("from", from.String()).Msg("Datagram from unexpected peer dropped")
			continue
		}

		packet := buf[:n]
		s.logPacket("recv packet", packet)

		if IsFragment(packet) {
			f, err := ParseFragment(packet)
			if err != nil {
				*rejected = newError(KindProtocol, op, err)
				continue
			}

			full, done, err := asm.add(f)
			if err != nil {
				*rejected = newError(KindProtocol, op, err)
				continue
			}
			if !done {
				continue
			}
			packet = full
		}

		payload, err := ValidateAndStrip(packet, command)
		if err != nil {
			if s.stale(packet) {
				s.logger.Trace().Str("op", op).Msg("Stale reply of a finished exchange dropped")
				continue
			}

			var qe *Error
			if errors.As(err, &qe) {
				qe.Op = op
			}
			*rejected = err
			continue
		}

		return append([]byte(nil), payload...), nil
	}
}

// stale reports whether packet is a well-formed reply to an exchange that
// already completed in this session.
func (s *session) stale(packet []byte) bool {
	for _, command := range s.answered {
		if _, err := ValidateAndStrip(packet, command); err == nil {
			return true
		}
	}

	return false
}

// logPacket writes a hex dump of b at trace level.
func (s *session) logPacket(msg string, b []byte) {
	e := s.logger.Trace()
	if !e.Enabled() {
		return
	}

	e.Str("peer", s.target.String()).
		Str("packet", hex.EncodeToString(b)).
		Msg(msg)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
