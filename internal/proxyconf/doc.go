// Package proxyconf describes how outbound connections are routed through a
// SOCKS4, SOCKS5 or HTTP CONNECT proxy: an immutable ProxyConfig with strict
// equality, a wildcard non-proxy hosts predicate, and the handshake timeout
// policy. Build a ProxyConfig with NewBuilder.
package proxyconf
