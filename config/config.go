// Package config resolves email delivery settings from explicit values
// and TERMINATION_MONITOR_* environment variables.
package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	// EnvPrefix is prepended to every fallback environment variable,
	// e.g. TERMINATION_MONITOR_RECIPIENT_EMAIL.
	EnvPrefix = "termination_monitor"

	DefaultEnvFile = ".env"

	// DefaultSMTPPort is the standard submission port (STARTTLS).
	DefaultSMTPPort = 587
)

// Config holds explicit delivery settings supplied by the caller.
// Zero-valued fields fall back to the corresponding environment variable.
type Config struct {
	RecipientEmail string
	SMTPHost       string
	SMTPPort       int
	SenderEmail    string
	SenderPassword string
	HTTPProxy      string
	HTTPSProxy     string
	SOCKSProxy     string
}

// envConfig mirrors Config for the environment fallback source.
type envConfig struct {
	RecipientEmail string `split_words:"true"`
	SMTPHost       string `split_words:"true"`
	SMTPPort       int    `split_words:"true"`
	SenderEmail    string `split_words:"true"`
	SenderPassword string `split_words:"true"`
	HTTPProxy      string `split_words:"true"`
	HTTPSProxy     string `split_words:"true"`
	SOCKSProxy     string `split_words:"true"`
}

// Resolved is the complete effective configuration for one monitor
// instance. It is built once and passed around by value.
type Resolved struct {
	RecipientEmail string
	SMTPHost       string
	SMTPPort       int
	SenderEmail    string
	SenderPassword string
	Proxy          ProxyTarget
}

// Resolve merges explicit settings with the environment fallback,
// field by field, explicit values winning. All required fields must end
// up non-empty or a *ConfigurationError is returned.
func Resolve(explicit Config) (Resolved, error) {
	// .env file is optional, failure is acceptable
	// nolint:errcheck
	_ = godotenv.Load(DefaultEnvFile)

	var env envConfig
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Resolved{}, &ConfigurationError{
			cause: errors.Wrap(err, "failed to envconfig.Process"),
		}
	}

	r := Resolved{
		RecipientEmail: firstNonEmpty(explicit.RecipientEmail, env.RecipientEmail),
		SMTPHost:       firstNonEmpty(explicit.SMTPHost, env.SMTPHost),
		SMTPPort:       firstPositive(explicit.SMTPPort, env.SMTPPort, DefaultSMTPPort),
		SenderEmail:    firstNonEmpty(explicit.SenderEmail, env.SenderEmail),
		SenderPassword: firstNonEmpty(explicit.SenderPassword, env.SenderPassword),
	}

	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"recipient_email", r.RecipientEmail},
		{"smtp_host", r.SMTPHost},
		{"sender_email", r.SenderEmail},
		{"sender_password", r.SenderPassword},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Resolved{}, &ConfigurationError{Missing: missing}
	}

	proxy, err := selectProxy(explicit, env)
	if err != nil {
		return Resolved{}, err
	}
	r.Proxy = proxy

	return r, nil
}

// selectProxy picks the single effective proxy. Priority: HTTP > HTTPS
// > SOCKS5; lower-priority values are ignored once one is found.
func selectProxy(explicit Config, env envConfig) (ProxyTarget, error) {
	for _, cand := range []struct {
		kind ProxyKind
		raw  string
	}{
		{ProxyHTTP, firstNonEmpty(explicit.HTTPProxy, env.HTTPProxy)},
		{ProxyHTTPS, firstNonEmpty(explicit.HTTPSProxy, env.HTTPSProxy)},
		{ProxySOCKS5, firstNonEmpty(explicit.SOCKSProxy, env.SOCKSProxy)},
	} {
		if cand.raw == "" {
			continue
		}
		return parseProxy(cand.kind, cand.raw)
	}
	return ProxyTarget{}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
