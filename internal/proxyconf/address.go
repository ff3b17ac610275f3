package proxyconf

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Address is a proxy endpoint. It is either unresolved (a hostname that has
// not been looked up yet) or resolved (a literal IP).
type Address struct {
	host string
	port int
	ip   netip.Addr
}

func Unresolved(host string, port int) Address {
	return Address{host: host, port: port}
}

func Resolved(ip netip.Addr, port int) Address {
	return Address{host: ip.String(), port: port, ip: ip}
}

// ParseAddress splits "host:port". Literal IPs yield a resolved address.
func ParseAddress(hostport string) (Address, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Address{}, &ConfigurationError{Field: "address", Reason: err.Error()}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Address{}, &ConfigurationError{Field: "address", Reason: "bad port " + strconv.Quote(portStr)}
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return Resolved(ip, port), nil
	}
	return Unresolved(host, port), nil
}

func (a Address) Host() string { return a.host }
func (a Address) Port() int { return a.port }

// IP returns the resolved address, or the zero netip.Addr when unresolved.
func (a Address) IP() netip.Addr { return a.ip }

func (a Address) IsResolved() bool { return a.ip.IsValid() }

func (a Address) IsZero() bool { return a.host == "" && a.port == 0 && !a.ip.IsValid() }

func (a Address) String() string {
	return net.JoinHostPort(a.host, strconv.Itoa(a.port))
}

// Equal compares resolved addresses by IP and port and unresolved ones by
// hostname (case-insensitive) and port. Mixed pairs are never equal.
func (a Address) Equal(b Address) bool {
	if a.port != b.port || a.IsResolved() != b.IsResolved() {
		return false
	}
	if a.IsResolved() {
		return a.ip == b.ip
	}
	return foldHost(a.host) == foldHost(b.host)
}

// foldHost is the single case folding used by both Equal and canonical.
func foldHost(host string) string { return strings.ToLower(host) }

// canonical is the form hashed alongside Equal.
func (a Address) canonical() string {
	if a.IsResolved() {
		return fmt.Sprintf("ip:%s:%d", a.ip, a.port)
	}
	return fmt.Sprintf("host:%s:%d", foldHost(a.host), a.port)
}

func (a Address) validate() error {
	if a.host == "" {
		return &ConfigurationError{Field: "address", Reason: "empty host"}
	}
	if a.port < 0 || a.port > 65535 {
		return &ConfigurationError{Field: "address", Reason: fmt.Sprintf("port %d out of range", a.port)}
	}
	return nil
}
