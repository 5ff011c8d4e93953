//go:build linux

package ingest

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// minRecvBuf is the minimum SO_RCVBUF size set on every ingest socket
// (§4.1: "socket receive buffer sized >= 64 KiB").
const minRecvBuf = 64 * 1024

// epollTimeoutMillis is the level-triggered EpollWait timeout.
const epollTimeoutMillis = 1000

// maxPacketSize bounds one recv call (§4.1: packets are up to 8200 bytes).
const maxPacketSize = 8200

// portSocket binds one non-blocking UDP socket for one configured port.
type portSocket struct {
	fd        int
	portIndex int
}

func bindPortSocket(port, portIndex int) (*portSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("ingest: socket(): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, minRecvBuf); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ingest: setsockopt SO_RCVBUF: %w", err)
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ingest: bind port %d: %w", port, err)
	}
	return &portSocket{fd: fd, portIndex: portIndex}, nil
}

func (s *portSocket) close() error {
	return unix.Close(s.fd)
}

// epollPoller multiplexes readiness across every configured port socket
// using a level-triggered Linux epoll instance, matching the spec's
// "level-triggered readiness poll (1s timeout)" contract.
type epollPoller struct {
	epfd    int
	sockets map[int]*portSocket // fd -> socket
}

func newEpollPoller(sockets []*portSocket) (*epollPoller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("ingest: epoll_create1: %w", err)
	}
	p := &epollPoller{epfd: epfd, sockets: make(map[int]*portSocket, len(sockets))}
	for _, s := range sockets {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(s.fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, s.fd, &ev); err != nil {
			unix.Close(epfd)
			return nil, fmt.Errorf("ingest: epoll_ctl add fd %d: %w", s.fd, err)
		}
		p.sockets[s.fd] = s
	}
	return p, nil
}

// wait blocks up to epollTimeoutMillis and returns the sockets that are
// ready to read, or an empty slice on timeout.
func (p *epollPoller) wait() ([]*portSocket, error) {
	var events [32]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, events[:], epollTimeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("ingest: epoll_wait: %w", err)
	}
	ready := make([]*portSocket, 0, n)
	for i := 0; i < n; i++ {
		if s, ok := p.sockets[int(events[i].Fd)]; ok {
			ready = append(ready, s)
		}
	}
	return ready, nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}

// recv reads up to maxPacketSize bytes without blocking (the socket is
// SOCK_NONBLOCK); a zero-length or EAGAIN result is not an error.
func (s *portSocket) recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, fmt.Errorf("ingest: recvfrom port socket: %w", err)
	}
	return n, nil
}
