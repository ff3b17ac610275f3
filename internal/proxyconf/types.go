package proxyconf

import (
	"strconv"
	"strings"
)

// Type is the proxy protocol used to reach the target.
type Type uint8

const (
	TypeUnset Type = iota
	SOCKS4
	SOCKS5
	HTTP
)

const DefaultConnectTimeoutMillis int64 = 10000

func (t Type) String() string {
	switch t {
	case SOCKS4:
		return "SOCKS4"
	case SOCKS5:
		return "SOCKS5"
	case HTTP:
		return "HTTP"
	default:
		return "UNSET"
	}
}

// ParseType accepts the protocol name in any case.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SOCKS4":
		return SOCKS4, nil
	case "SOCKS5":
		return SOCKS5, nil
	case "HTTP":
		return HTTP, nil
	}
	return TypeUnset, &ConfigurationError{Field: "type", Reason: "unknown proxy type " + strconv.Quote(s)}
}
