// Package smtp delivers termination reports over a direct or proxied
// SMTP submission session.
package smtp

import (
	"time"

	"github.com/Sininliny/Your-Program-is-Terminated/config"
)

// smtpsPort is the implicit-TLS submission port. Any other port gets a
// plaintext connection upgraded with STARTTLS when the server offers it.
const smtpsPort = 465

const defaultDialTimeout = 30 * time.Second

// Config contains SMTP submission parameters.
type Config struct {
	Host     string             // smtp.gmail.com
	Port     int                // 587 for STARTTLS, 465 for implicit TLS
	Username string             // sender email, used for AUTH and as envelope fallback
	Password string             // password or app password
	Proxy    config.ProxyTarget // optional tunnel endpoint
	Insecure bool               // skip certificate verification

	// DialTimeout bounds connection establishment, tunnel included.
	// Zero means 30s. The session itself runs on library defaults.
	DialTimeout time.Duration
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return defaultDialTimeout
}
