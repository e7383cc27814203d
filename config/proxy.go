package config

import (
	"net"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// ProxyKind identifies the tunnel protocol of a configured proxy.
type ProxyKind string

const (
	ProxyNone   ProxyKind = ""
	ProxyHTTP   ProxyKind = "http"
	ProxyHTTPS  ProxyKind = "https"
	ProxySOCKS5 ProxyKind = "socks5"
)

// DefaultProxyPort is assumed when a proxy URI omits the port.
const DefaultProxyPort = 8080

// ProxyTarget is the resolved tunnel endpoint for one delivery.
type ProxyTarget struct {
	Kind ProxyKind
	Host string
	Port int
}

// IsZero reports whether no proxy is configured.
func (p ProxyTarget) IsZero() bool {
	return p.Kind == ProxyNone
}

// Addr returns the host:port dial address of the proxy.
func (p ProxyTarget) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// parseProxy parses a scheme://host:port proxy URI.
func parseProxy(kind ProxyKind, raw string) (ProxyTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ProxyTarget{}, &ConfigurationError{
			cause: errors.Wrapf(err, "malformed %s proxy URI %q", kind, raw),
		}
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return ProxyTarget{}, &ConfigurationError{
			cause: errors.Errorf("malformed %s proxy URI %q: expected scheme://host:port", kind, raw),
		}
	}

	port := DefaultProxyPort
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return ProxyTarget{}, &ConfigurationError{
				cause: errors.Wrapf(err, "malformed %s proxy port in %q", kind, raw),
			}
		}
	}

	return ProxyTarget{
		Kind: kind,
		Host: u.Hostname(),
		Port: port,
	}, nil
}
