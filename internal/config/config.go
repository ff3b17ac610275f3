package config

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.io/kevin-rd/k8s-tools/go-proxyconf/internal/proxyconf"
)

const EnvPrefix = "PROXY"

// Config is the file/env/flag form of a proxy configuration.
type Config struct {
	Type                 string            `mapstructure:"type"`
	Host                 string            `mapstructure:"host"`
	Port                 int               `mapstructure:"port"`
	Username             string            `mapstructure:"username"`
	Password             string            `mapstructure:"password"`
	PasswordEnv          string            `mapstructure:"password_env"`
	Headers              map[string]string `mapstructure:"headers"`
	NonProxyHosts        string            `mapstructure:"non_proxy_hosts"`
	ConnectTimeoutMillis int64             `mapstructure:"connect_timeout_millis"`
}

var envKeys = []string{
	"type", "host", "port", "username", "password", "password_env",
	"non_proxy_hosts", "connect_timeout_millis",
}

// New returns a viper instance with defaults and PROXY_* environment
// bindings, e.g. PROXY_NON_PROXY_HOSTS.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("connect_timeout_millis", proxyconf.DefaultConnectTimeoutMillis)
	v.SetEnvPrefix(EnvPrefix)
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// BindFlags registers the proxy flags on fs and binds them into v. Flag
// names use dashes where the keys use underscores.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("type", "", "proxy type: socks4, socks5 or http")
	fs.String("host", "", "proxy host")
	fs.Int("port", 0, "proxy port")
	fs.String("username", "", "proxy username")
	fs.String("password-env", "", "environment variable holding the proxy password")
	fs.String("non-proxy-hosts", "", "hosts that bypass the proxy, e.g. localhost|*.internal")
	fs.Int64("connect-timeout-millis", proxyconf.DefaultConnectTimeoutMillis, "handshake timeout, <=0 disables it")

	for _, name := range []string{"type", "host", "port", "username", "password-env", "non-proxy-hosts", "connect-timeout-millis"} {
		if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the optional config file at path and decodes the merged
// settings.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		log.Debugf("loaded proxy config from %s", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &c, nil
}

// Builder maps c onto a proxyconf.Builder. Each call creates new password
// and header capabilities, so configs built from two calls are not Equal.
func (c *Config) Builder() (*proxyconf.Builder, error) {
	b := proxyconf.NewBuilder().
		Username(c.Username).
		NonProxyHosts(c.NonProxyHosts).
		ConnectTimeoutMillis(c.ConnectTimeoutMillis)

	if c.Type != "" {
		t, err := proxyconf.ParseType(c.Type)
		if err != nil {
			return nil, err
		}
		b.Type(t)
	}
	if c.Host != "" {
		addr, err := proxyconf.ParseAddress(net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
		if err != nil {
			return nil, err
		}
		b.Address(addr)
	}

	switch {
	case c.Password != "" && c.PasswordEnv != "":
		return nil, errors.New("password and password_env are mutually exclusive")
	case c.Password != "":
		b.Password(proxyconf.StaticPassword(c.Password))
	case c.PasswordEnv != "":
		b.Password(proxyconf.EnvPassword(c.PasswordEnv))
	}

	if len(c.Headers) > 0 {
		h := make(http.Header, len(c.Headers))
		for k, val := range c.Headers {
			h.Set(k, val)
		}
		b.HTTPHeaders(proxyconf.StaticHeaders(h))
	}
	return b, nil
}
