package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// EngineFactory returns a fresh, unused transfer engine. Each transfer gets its own.
type EngineFactory func() *resty.Client

// NewEngine creates a standalone resty client with the specified timeout, for
// callers that need custom verbs or JSON bodies (e.g. webhook publishers).
func NewEngine(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	return c
}

// probeEngine verifies the factory yields an engine whose transport can be tuned.
func probeEngine(factory EngineFactory) error {
	if factory == nil {
		return fmt.Errorf("%w: no engine factory", ErrEnvironment)
	}
	engine := factory()
	if engine == nil {
		return fmt.Errorf("%w: engine factory returned nil", ErrEnvironment)
	}
	defer engine.GetClient().CloseIdleConnections()
	if _, err := engine.Transport(); err != nil {
		return fmt.Errorf("%w: %v", ErrEnvironment, err)
	}
	return nil
}

// configureEngine applies the resolved transfer settings to a fresh engine.
func configureEngine(engine *resty.Client, s settings, log Logger) error {
	transport, err := engine.Transport()
	if err != nil {
		return &transferError{code: CodeFailedInit, err: fmt.Errorf("%w: %v", ErrEnvironment, err)}
	}

	dialer := &net.Dialer{
		Timeout:   s.connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = s.connectTimeout

	tlsCfg := &tls.Config{
		// Peer verification is an explicit, caller-visible flag (default off).
		InsecureSkipVerify: !s.verifyPeer, //nolint:gosec
	}
	// Plain http transfers only need the bundle when a redirect may lead to https.
	if s.caInfo != "" && (isHTTPS(s.url) || s.followLocation) {
		pool, err := loadCABundle(s.caInfo)
		switch {
		case err == nil:
			tlsCfg.RootCAs = pool
		case s.verifyPeer:
			return &transferError{code: CodeSSLCACertBadFile, err: err}
		default:
			log.WarnObj("ca bundle ignored", "tls", map[string]any{
				"ca_info": s.caInfo,
				"error":   err.Error(),
			})
		}
	}
	engine.SetTLSClientConfig(tlsCfg)

	if s.proxy != "" {
		engine.SetProxy(s.proxy)
	}

	engine.SetTimeout(s.executeTimeout)
	engine.SetRetryCount(0)
	engine.SetLogger(engineLogger{log: log})

	if s.followLocation {
		limit := s.maxRedirs
		engine.SetRedirectPolicy(resty.RedirectPolicyFunc(func(_ *http.Request, via []*http.Request) error {
			if len(via) > limit {
				return fmt.Errorf("%w (%d)", errTooManyRedirects, limit)
			}
			return nil
		}))
	} else {
		engine.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	}
	return nil
}

func isHTTPS(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && strings.EqualFold(u.Scheme, "https")
}

func loadCABundle(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca bundle %s contains no PEM certificates", path)
	}
	return pool, nil
}
