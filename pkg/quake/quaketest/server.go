// Package quaketest provides an in-process UDP game server for tests of code
// built on the quake package.
package quaketest

import (
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
)

// Handler returns the datagrams to send back for one request. Returning nil
// keeps the server silent.
type Handler func(request []byte) [][]byte

// Server is a fake game server listening on 127.0.0.1.
type Server struct {
	conn     *net.UDPConn
	handler  Handler
	done     chan struct{}
	mu       sync.Mutex
	requests [][]byte
	count    atomic.Int32
}

// NewServer starts a server answering with h.
func NewServer(h Handler) (*Server, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, err
	}

	s := &Server{conn: conn, handler: h, done: make(chan struct{})}
	go s.serve()

	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() netip.AddrPort {
	return s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Count returns the number of datagrams received so far.
func (s *Server) Count() int {
	return int(s.count.Load())
}

// Requests returns a copy of every datagram received so far.
func (s *Server) Requests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(s.requests))
	copy(out, s.requests)
	return out
}

// Close stops the server and waits for its read loop to exit.
func (s *Server) Close() error {
	err := s.conn.Close()
	<-s.done
	return err
}

func (s *Server) serve() {
	defer close(s.done)

	buf := make([]byte, 65535)
	for {
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return
		}

		req := append([]byte(nil), buf[:n]...)
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		s.count.Add(1)

		if s.handler == nil {
			continue
		}
		for _, reply := range s.handler(req) {
			_, _ = s.conn.WriteToUDPAddrPort(reply, from)
		}
	}
}

// Reply builds a handler answering requests starting with the marker and
// request command with one packet: marker, response token, newline, body.
func Reply(request, response, body string) Handler {
	want := "\xFF\xFF\xFF\xFF" + request
	return func(req []byte) [][]byte {
		if len(req) < len(want) || string(req[:len(want)]) != want {
			return nil
		}
		return [][]byte{[]byte("\xFF\xFF\xFF\xFF" + response + "\n" + body)}
	}
}
