package socks5

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Server accepts SOCKS5 clients on a loopback port.
type Server struct {
	// Credentials maps username to password. Nil means no authentication.
	Credentials map[string]string

	// Stall makes the server accept connections but never answer them.
	Stall bool

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	requests []Request
	conns    map[net.Conn]struct{}
	closed   bool
}

// Start listens on 127.0.0.1 with a random port and returns the address.
// Cancelling ctx or calling Close stops the listener and drops open
// connections.
func (s *Server) Start(ctx context.Context) (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("fail in listen: %w", err)
	}
	s.listener = l
	log.Debug("Socks5 server start at: ", l.Addr())

	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := l.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					log.Warn("fail in accept ", err)
				}
				return
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(conn net.Conn) {
				stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
				defer func() {
					stop()
					_ = conn.Close()
					s.track(conn, false)
					s.wg.Done()
				}()
				s.handle(conn)
			}(conn)
		}
	}()
	return l.Addr().String(), nil
}

// Close stops accepting, closes every open connection and waits for the
// handlers to return.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !add {
		delete(s.conns, conn)
		return
	}
	if s.closed {
		_ = conn.Close()
		return
	}
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	s.conns[conn] = struct{}{}
}

// Requests returns the handshakes completed so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) handle(conn net.Conn) {
	if s.Stall {
		// blocks until the peer, ctx or Close drops the connection
		_, _ = io.Copy(io.Discard, conn)
		return
	}
	r := bufio.NewReader(conn)
	var req Request

	if err := s.auth(r, conn, &req); err != nil {
		log.Warn("fail in handshake: ", err)
		return
	}
	if err := readRequest(r, &req); err != nil {
		log.Warn("fail in handshake: ", err)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if _, err := conn.Write([]byte{SOCKS5VERSION, Succeeded, 0x00, RequestAtypIPV4, 0, 0, 0, 0, 0, 0}); err != nil {
		log.Warn("fail in reply: ", err)
		return
	}

	_, _ = io.Copy(conn, r)
}

func (s *Server) auth(r *bufio.Reader, w io.Writer, req *Request) error {
	/*
		   +-----+----------+-----------+
		   | VER | NMETHODS |  METHODS  |
		   +-----+----------+-----------+
		   |  1  |    1     |  1 to 255 |
		   +-----+----------+-----------+
	*/
	buf := make([]byte, 255)
	if _, err := io.ReadFull(r, buf[:2]); err != nil {
		return fmt.Errorf("read greeting: %w", err)
	}
	if buf[0] != SOCKS5VERSION {
		return errors.New("only support socks5 version")
	}
	nmethods := int(buf[1])
	if _, err := io.ReadFull(r, buf[:nmethods]); err != nil {
		return fmt.Errorf("read methods: %w", err)
	}

	want := MethodNoAuth
	if s.Credentials != nil {
		want = MethodUserPass
	}
	offered := false
	for _, m := range buf[:nmethods] {
		if m == want {
			offered = true
		}
	}
	if !offered {
		_, _ = w.Write([]byte{SOCKS5VERSION, MethodNoAcceptable})
		return fmt.Errorf("client did not offer method %d", want)
	}
	if _, err := w.Write([]byte{SOCKS5VERSION, want}); err != nil {
		return err
	}
	if want == MethodNoAuth {
		return nil
	}

	/*
		   +----+------+----------+------+----------+
		   |VER | ULEN |  UNAME   | PLEN |  PASSWD  |
		   +----+------+----------+------+----------+
		   | 1  |  1   | 1 to 255 |  1   | 1 to 255 |
		   +----+------+----------+------+----------+
	*/
	if _, err := io.ReadFull(r, buf[:2]); err != nil {
		return fmt.Errorf("read auth header: %w", err)
	}
	if buf[0] != userPassVersion {
		return fmt.Errorf("bad auth version %d", buf[0])
	}
	user := make([]byte, int(buf[1]))
	if _, err := io.ReadFull(r, user); err != nil {
		return fmt.Errorf("read username: %w", err)
	}
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return fmt.Errorf("read password length: %w", err)
	}
	pass := make([]byte, int(buf[0]))
	if _, err := io.ReadFull(r, pass); err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	req.Username, req.Password = string(user), string(pass)

	if expected, ok := s.Credentials[req.Username]; !ok || expected != req.Password {
		_, _ = w.Write([]byte{userPassVersion, Failure})
		return fmt.Errorf("bad credentials for %q", req.Username)
	}
	_, err := w.Write([]byte{userPassVersion, Succeeded})
	return err
}

func readRequest(r *bufio.Reader, req *Request) error {
	/*
		   +----+-----+-------+------+----------+----------+
		   |VER | CMD |  RSV  | ATYP | DST.ADDR | DST.PORT |
		   +----+-----+-------+------+----------+----------+
		   | 1  |  1  | X'00' |  1   | Variable |    2     |
		   +----+-----+-------+------+----------+----------+
	*/
	buf := make([]byte, 255)
	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	if buf[0] != SOCKS5VERSION {
		return errors.New("only support socks5 version")
	}
	if buf[1] != RequestConnect {
		return errors.New("only support connect requests")
	}

	var host string
	switch buf[3] {
	case RequestAtypIPV4:
		if _, err := io.ReadFull(r, buf[:net.IPv4len]); err != nil {
			return fmt.Errorf("read ipv4: %w", err)
		}
		host = net.IP(buf[:net.IPv4len]).String()
	case RequestAtypDomainname:
		if _, err := io.ReadFull(r, buf[:1]); err != nil {
			return fmt.Errorf("read domain length: %w", err)
		}
		n := int(buf[0])
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return fmt.Errorf("read domain: %w", err)
		}
		host = string(buf[:n])
	case RequestAtypIPV6:
		if _, err := io.ReadFull(r, buf[:net.IPv6len]); err != nil {
			return fmt.Errorf("read ipv6: %w", err)
		}
		host = net.IP(buf[:net.IPv6len]).String()
	default:
		return fmt.Errorf("unknown address type %d", buf[3])
	}

	if _, err := io.ReadFull(r, buf[:2]); err != nil {
		return fmt.Errorf("read port: %w", err)
	}
	port := binary.BigEndian.Uint16(buf[:2])
	req.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	return nil
}
