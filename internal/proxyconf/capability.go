package proxyconf

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
)

// capabilities are compared by identity, never by invoking them.
var capabilitySeq atomic.Uint64

// PasswordFunc returns the password for username. It may block and may be
// called concurrently, once per handshake.
type PasswordFunc func(ctx context.Context, username string) (string, error)

// PasswordProvider is a lazily invoked credential source. Two providers are
// equal only if they are the same value returned by one constructor call.
type PasswordProvider struct {
	id uint64
	fn PasswordFunc
}

func NewPasswordProvider(fn PasswordFunc) *PasswordProvider {
	if fn == nil {
		return nil
	}
	return &PasswordProvider{id: capabilitySeq.Add(1), fn: fn}
}

func StaticPassword(password string) *PasswordProvider {
	return NewPasswordProvider(func(context.Context, string) (string, error) {
		return password, nil
	})
}

// EnvPassword reads the named environment variable each time it is asked.
func EnvPassword(name string) *PasswordProvider {
	return NewPasswordProvider(func(context.Context, string) (string, error) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("proxyconf: password variable %s is not set", name)
		}
		return v, nil
	})
}

func (p *PasswordProvider) Password(ctx context.Context, username string) (string, error) {
	if p == nil {
		return "", nil
	}
	return p.fn(ctx, username)
}

func (p *PasswordProvider) identity() uint64 {
	if p == nil {
		return 0
	}
	return p.id
}

// HeaderCallback mutates the headers sent with an HTTP CONNECT request.
// Like PasswordProvider it is compared by identity.
type HeaderCallback struct {
	id uint64
	fn func(http.Header)
}

func NewHeaderCallback(fn func(http.Header)) *HeaderCallback {
	if fn == nil {
		return nil
	}
	return &HeaderCallback{id: capabilitySeq.Add(1), fn: fn}
}

// StaticHeaders sets a copy of h on every CONNECT request.
func StaticHeaders(h http.Header) *HeaderCallback {
	h = h.Clone()
	return NewHeaderCallback(func(dst http.Header) {
		for k, vs := range h {
			dst.Del(k)
			for _, v := range vs {
				dst.Add(k, v)
			}
		}
	})
}

func (c *HeaderCallback) Apply(h http.Header) {
	if c == nil {
		return
	}
	c.fn(h)
}

func (c *HeaderCallback) identity() uint64 {
	if c == nil {
		return 0
	}
	return c.id
}
