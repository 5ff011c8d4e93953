//go:build !linux

package ingest

import (
	"errors"
	"fmt"
	"net"
	"time"
)

const maxPacketSize = 8200

// portSocket is the non-Linux fallback: a plain net.UDPConn polled with a
// short read deadline instead of epoll. Linux builds use the real
// epoll-based poller in socket_linux.go.
type portSocket struct {
	conn      *net.UDPConn
	portIndex int
}

func bindPortSocket(port, portIndex int) (*portSocket, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("ingest: listen udp port %d: %w", port, err)
	}
	return &portSocket{conn: conn, portIndex: portIndex}, nil
}

func (s *portSocket) close() error {
	return s.conn.Close()
}

func (s *portSocket) recv(buf []byte) (int, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	n, err := s.conn.Read(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// epollPoller is a trivial round-robin stand-in on non-Linux platforms:
// every socket is "ready" every wait() call, since recv itself is
// deadline-bounded.
type epollPoller struct {
	sockets []*portSocket
}

func newEpollPoller(sockets []*portSocket) (*epollPoller, error) {
	return &epollPoller{sockets: sockets}, nil
}

func (p *epollPoller) wait() ([]*portSocket, error) {
	return p.sockets, nil
}

func (p *epollPoller) close() error {
	return nil
}
