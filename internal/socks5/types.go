// Package socks5 is a minimal SOCKS5 peer used to exercise proxy clients.
// After a successful CONNECT it echoes whatever the client sends instead of
// relaying to the requested target.
package socks5

const (
	SOCKS5VERSION   uint8 = 5
	userPassVersion uint8 = 1
)

const (
	MethodNoAuth       uint8 = 0x00
	MethodUserPass     uint8 = 0x02
	MethodNoAcceptable uint8 = 0xFF
)

const RequestConnect uint8 = 1

const (
	RequestAtypIPV4       uint8 = 1
	RequestAtypDomainname uint8 = 3
	RequestAtypIPV6       uint8 = 4
)

const (
	Succeeded uint8 = 0x00
	Failure   uint8 = 0x01
)

// Request is what a client asked for during one handshake.
type Request struct {
	Username string
	Password string
	Addr     string
}
