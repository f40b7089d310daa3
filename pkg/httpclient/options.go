package httpclient

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Option identifies a transport setting that can be passed through to the engine.
type Option string

const (
	OptConnectTimeout Option = "connect_timeout"
	OptTimeout        Option = "timeout"
	OptUserAgent      Option = "user_agent"
	OptVerifyPeer     Option = "ssl_verify_peer"
	OptCAInfo         Option = "ca_info"
	OptUserPwd        Option = "user_pwd"
	OptFollowLocation Option = "follow_location"
	OptMaxRedirs      Option = "max_redirs"
	OptProxy          Option = "proxy"
	OptReferer        Option = "referer"
	OptCookie         Option = "cookie"
	OptHeaderOut      Option = "header_out"
)

// Options maps transport settings to their values. Integer timeouts are seconds.
type Options map[Option]any

// settings is the fully resolved configuration of a single transfer.
type settings struct {
	method         string
	url            string
	connectTimeout time.Duration
	executeTimeout time.Duration
	userAgent      string
	verifyPeer     bool
	caInfo         string
	userPwd        string
	followLocation bool
	maxRedirs      int
	proxy          string
	referer        string
	cookie         string
	headerOut      bool
}

type optionSetter func(s *settings, v any) error

var optionSetters = map[Option]optionSetter{
	OptConnectTimeout: func(s *settings, v any) (err error) {
		s.connectTimeout, err = toTimeout(v)
		return err
	},
	OptTimeout: func(s *settings, v any) (err error) {
		s.executeTimeout, err = toTimeout(v)
		return err
	},
	OptUserAgent: func(s *settings, v any) (err error) {
		s.userAgent, err = cast.ToStringE(v)
		return err
	},
	OptVerifyPeer: func(s *settings, v any) (err error) {
		s.verifyPeer, err = cast.ToBoolE(v)
		return err
	},
	OptCAInfo: func(s *settings, v any) (err error) {
		s.caInfo, err = cast.ToStringE(v)
		return err
	},
	OptUserPwd: func(s *settings, v any) (err error) {
		s.userPwd, err = cast.ToStringE(v)
		return err
	},
	OptFollowLocation: func(s *settings, v any) (err error) {
		s.followLocation, err = cast.ToBoolE(v)
		return err
	},
	OptMaxRedirs: func(s *settings, v any) error {
		n, err := cast.ToIntE(v)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("max redirects must not be negative, got %d", n)
		}
		s.maxRedirs = n
		return nil
	},
	OptProxy: func(s *settings, v any) error {
		raw, err := cast.ToStringE(v)
		if err != nil {
			return err
		}
		if raw != "" {
			if _, err := url.Parse(raw); err != nil {
				return fmt.Errorf("invalid proxy url: %w", err)
			}
		}
		s.proxy = raw
		return nil
	},
	OptReferer: func(s *settings, v any) (err error) {
		s.referer, err = cast.ToStringE(v)
		return err
	},
	OptCookie: func(s *settings, v any) (err error) {
		s.cookie, err = cast.ToStringE(v)
		return err
	},
	OptHeaderOut: func(s *settings, v any) (err error) {
		s.headerOut, err = cast.ToBoolE(v)
		return err
	},
}

// ParseOption resolves a textual option name (as found in config files) to a known Option.
func ParseOption(name string) (Option, bool) {
	opt := Option(strings.ToLower(strings.TrimSpace(name)))
	_, ok := optionSetters[opt]
	return opt, ok
}

// apply overlays the options onto s. Unknown identifiers and values that
// cannot be coerced are skipped and reported through log.
func (o Options) apply(s *settings, log Logger) {
	for opt, v := range o {
		setter, ok := optionSetters[opt]
		if !ok {
			log.WarnObj("unknown transfer option skipped", "transfer_option", map[string]any{
				"option": string(opt),
			})
			continue
		}
		if err := setter(s, v); err != nil {
			log.WarnObj("invalid transfer option value skipped", "transfer_option", map[string]any{
				"option": string(opt),
				"value":  fmt.Sprintf("%v", v),
				"error":  err.Error(),
			})
		}
	}
}

func (o Options) clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// toTimeout accepts a time.Duration, a whole number of seconds, or a duration string ("1m30s").
func toTimeout(v any) (time.Duration, error) {
	var d time.Duration
	switch val := v.(type) {
	case time.Duration:
		d = val
	case string:
		if n, err := cast.ToIntE(strings.TrimSpace(val)); err == nil {
			d = time.Duration(n) * time.Second
			break
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return 0, err
		}
		d = parsed
	default:
		n, err := cast.ToIntE(v)
		if err != nil {
			return 0, err
		}
		d = time.Duration(n) * time.Second
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative, got %s", d)
	}
	return d, nil
}

// CallOption tunes a single Get or Post call.
type CallOption func(*callConfig)

type callConfig struct {
	connectTimeout time.Duration
	executeTimeout time.Duration
	options        Options
}

func newCallConfig(opts []CallOption) callConfig {
	cfg := callConfig{
		connectTimeout: DefaultConnectTimeout,
		executeTimeout: DefaultExecuteTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithConnectTimeout bounds connection establishment (dial and TLS handshake).
func WithConnectTimeout(d time.Duration) CallOption {
	return func(c *callConfig) {
		c.connectTimeout = d
	}
}

// WithExecuteTimeout bounds the whole transfer. Zero disables the bound.
func WithExecuteTimeout(d time.Duration) CallOption {
	return func(c *callConfig) {
		c.executeTimeout = d
	}
}

// WithOptions applies extra transport options to this call only, on top of the
// client-level options.
func WithOptions(opts Options) CallOption {
	return func(c *callConfig) {
		if len(opts) == 0 {
			return
		}
		if c.options == nil {
			c.options = make(Options, len(opts))
		}
		for k, v := range opts {
			c.options[k] = v
		}
	}
}
