package smtp

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"

	"github.com/Sininliny/Your-Program-is-Terminated/config"
)

// dial opens the TCP connection to the SMTP server, tunneling through
// the configured proxy when there is one.
func (s *Sender) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	d := &net.Dialer{Timeout: s.cfg.dialTimeout()}

	switch s.cfg.Proxy.Kind {
	case config.ProxyHTTP, config.ProxyHTTPS:
		return s.dialConnect(ctx, d, addr)
	case config.ProxySOCKS5:
		return s.dialSOCKS5(ctx, d, addr)
	default:
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, &DeliveryError{
				Stage: StageConnect,
				cause: errors.Wrapf(err, "failed to connect to SMTP server %s", addr),
			}
		}
		return conn, nil
	}
}

// dialConnect tunnels through an HTTP(S) proxy with a CONNECT request.
func (s *Sender) dialConnect(ctx context.Context, d *net.Dialer, addr string) (net.Conn, error) {
	conn, err := d.DialContext(ctx, "tcp", s.cfg.Proxy.Addr())
	if err != nil {
		return nil, &DeliveryError{
			Stage: StageProxy,
			cause: errors.Wrapf(err, "failed to connect to proxy %s", s.cfg.Proxy.Addr()),
		}
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, &DeliveryError{
			Stage: StageProxy,
			cause: errors.Wrap(err, "failed to write CONNECT request"),
		}
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, &DeliveryError{
			Stage: StageProxy,
			cause: errors.Wrap(err, "failed to read CONNECT response"),
		}
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, &DeliveryError{
			Stage: StageProxy,
			cause: errors.Errorf("proxy refused CONNECT to %s: %s", addr, resp.Status),
		}
	}

	// The SMTP greeting may already sit in the reader's buffer.
	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

// dialSOCKS5 tunnels through a SOCKS5 proxy.
func (s *Sender) dialSOCKS5(ctx context.Context, d *net.Dialer, addr string) (net.Conn, error) {
	pd, err := proxy.SOCKS5("tcp", s.cfg.Proxy.Addr(), nil, d)
	if err != nil {
		return nil, &DeliveryError{
			Stage: StageProxy,
			cause: errors.Wrapf(err, "failed to build SOCKS5 dialer for %s", s.cfg.Proxy.Addr()),
		}
	}

	var conn net.Conn
	if cd, ok := pd.(proxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = pd.Dial("tcp", addr)
	}
	if err != nil {
		return nil, &DeliveryError{
			Stage: StageProxy,
			cause: errors.Wrapf(err, "failed to connect to %s through SOCKS5 proxy", addr),
		}
	}
	return conn, nil
}

// bufferedConn drains bytes the CONNECT response reader consumed past
// the proxy reply before reading from the connection again.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
