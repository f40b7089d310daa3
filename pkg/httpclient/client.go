package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultConnectTimeout bounds connection establishment when the caller sets none.
	DefaultConnectTimeout = 120 * time.Second
	// DefaultExecuteTimeout bounds the whole transfer when the caller sets none.
	DefaultExecuteTimeout = 250 * time.Second

	defaultMaxRedirects = 10
)

// Config holds the construction options for a Client. All fields are optional.
type Config struct {
	// Agent is sent as the User-Agent of every request. When empty, and no
	// User-Agent header is set, the request carries no User-Agent at all.
	Agent string
	// Cert is a CA bundle path; it must be readable at construction time.
	Cert string
	// Headers are merged into the client's default request headers.
	Headers map[string]string
	// VerifyPeer enables TLS peer verification. It defaults to false, so the CA
	// bundle is configured but not enforced unless this is set.
	VerifyPeer bool
	Logger     Logger
	// Engine builds the transfer engine for each call. Defaults to resty.New.
	Engine EngineFactory
}

// Client is a synchronous, one-shot HTTP transfer adapter. Every Get, Post or
// Upload builds a fresh engine from the client configuration, executes it and
// releases it before returning.
//
// Transport failures are not returned as errors: the body comes back empty (or
// partial) and, when debugging is enabled, Debug reports the error code and
// message. Callers that need to detect failures must enable debugging.
//
// A Client is not safe for concurrent use. Give each goroutine its own Client,
// or guard a shared one with a mutex.
type Client struct {
	userAgent  string
	headers    map[string]string
	certPath   string
	verifyPeer bool
	opts       Options
	debug      bool
	lastDebug  *DebugInfo
	engine     EngineFactory
	log        Logger
}

// filePart is the single file field of a multipart upload.
type filePart struct {
	field string
	path  string
}

// New creates a Client. It fails with ErrEnvironment when the engine cannot be
// built and with ErrFileAccess when cfg.Cert is not readable.
func New(cfg Config) (*Client, error) {
	engine := cfg.Engine
	if engine == nil {
		engine = resty.New
	}
	if err := probeEngine(engine); err != nil {
		return nil, err
	}

	c := &Client{
		userAgent:  cfg.Agent,
		headers:    make(map[string]string),
		verifyPeer: cfg.VerifyPeer,
		opts:       make(Options),
		engine:     engine,
		log:        ensureLogger(cfg.Logger),
	}
	if cfg.Cert != "" {
		if _, err := c.SetCert(cfg.Cert); err != nil {
			return nil, err
		}
	}
	if len(cfg.Headers) > 0 {
		c.SetRequestHeaders(cfg.Headers)
	}
	return c, nil
}

// Get performs a GET transfer and returns the response body.
// Connect and execute timeouts default to DefaultConnectTimeout and DefaultExecuteTimeout.
func (c *Client) Get(ctx context.Context, url string, opts ...CallOption) string {
	return c.transfer(ctx, http.MethodGet, url, nil, nil, newCallConfig(opts))
}

// Post performs a POST transfer with fields form-encoded as the body and
// returns the response body.
func (c *Client) Post(ctx context.Context, url string, fields map[string]string, opts ...CallOption) string {
	return c.transfer(ctx, http.MethodPost, url, fields, nil, newCallConfig(opts))
}

// Upload posts a multipart form made of extraFields plus one file part named
// fieldName holding the content of filePath. A field in extraFields with the
// same name as fieldName is replaced by the file.
//
// options are applied to this transfer only, on top of the client options set
// with SetOpts; they do not persist on the client.
func (c *Client) Upload(ctx context.Context, url, filePath, fieldName string, extraFields map[string]string, options Options) string {
	fields := make(map[string]string, len(extraFields))
	for k, v := range extraFields {
		if k == fieldName {
			continue
		}
		fields[k] = v
	}
	file := &filePart{field: fieldName, path: filePath}
	return c.transfer(ctx, http.MethodPost, url, fields, file, newCallConfig([]CallOption{WithOptions(options)}))
}

// SetRequestHeaders merges headers into the default request headers.
// Existing names are overwritten. Names are kept exactly as supplied.
func (c *Client) SetRequestHeaders(headers map[string]string) *Client {
	for k, v := range headers {
		c.headers[k] = v
	}
	return c
}

// DeleteRequestHeaders removes every name present in headers; values are ignored
// and absent names are skipped.
func (c *Client) DeleteRequestHeaders(headers map[string]string) *Client {
	for k := range headers {
		delete(c.headers, k)
	}
	return c
}

// DeleteRequestHeaderNames removes the named headers.
func (c *Client) DeleteRequestHeaderNames(names ...string) *Client {
	for _, k := range names {
		delete(c.headers, k)
	}
	return c
}

// RequestHeaders returns the default headers in wire form ("Name:Value"),
// sorted by name. The result is empty, not nil, when no headers are set.
func (c *Client) RequestHeaders() []string {
	names := make([]string, 0, len(c.headers))
	for k := range c.headers {
		names = append(names, k)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, k := range names {
		lines = append(lines, k+":"+c.headers[k])
	}
	return lines
}

// SetCert sets the CA bundle used for TLS. The path must be a readable file now;
// it is not checked again per request.
func (c *Client) SetCert(path string) (*Client, error) {
	if err := checkReadable(path); err != nil {
		return c, err
	}
	c.certPath = path
	return c, nil
}

// SetVerifyPeer toggles TLS peer verification for subsequent transfers.
func (c *Client) SetVerifyPeer(verify bool) *Client {
	c.verifyPeer = verify
	return c
}

// SetDebug toggles debug capture. Turning it on discards any earlier record so
// Debug only reports transfers made while debugging was on.
func (c *Client) SetDebug(enabled bool) *Client {
	if enabled && !c.debug {
		c.lastDebug = nil
	}
	c.debug = enabled
	return c
}

// Debug returns the record of the last transfer. It fails with ErrState when
// debugging is off or no transfer has completed since it was turned on.
func (c *Client) Debug() (DebugInfo, error) {
	if !c.debug {
		return DebugInfo{}, fmt.Errorf("%w: debugging is not enabled", ErrState)
	}
	if c.lastDebug == nil {
		return DebugInfo{}, fmt.Errorf("%w: no debugging data, debugging was most likely enabled after the request finished", ErrState)
	}
	return c.lastDebug.clone(), nil
}

// SetAuth sets basic-auth credentials for subsequent transfers.
func (c *Client) SetAuth(user, password string) *Client {
	return c.SetOpts(Options{OptUserPwd: user + ":" + password})
}

// SetOpts merges extra transport options into the client. They are applied
// after the built-in defaults, so they override them.
func (c *Client) SetOpts(opts Options) *Client {
	for k, v := range opts {
		c.opts[k] = v
	}
	return c
}

// Opts returns a copy of the client-level extra options.
func (c *Client) Opts() Options {
	return c.opts.clone()
}

func (c *Client) settingsFor(method, url string, call callConfig) settings {
	s := settings{
		method:         method,
		url:            url,
		connectTimeout: call.connectTimeout,
		executeTimeout: call.executeTimeout,
		userAgent:      c.userAgent,
		verifyPeer:     c.verifyPeer,
		caInfo:         c.certPath,
		maxRedirs:      defaultMaxRedirects,
	}
	c.opts.apply(&s, c.log)
	call.options.apply(&s, c.log)
	return s
}

// transfer runs one request on a fresh engine and always releases it.
func (c *Client) transfer(ctx context.Context, method, url string, fields map[string]string, file *filePart, call callConfig) string {
	if ctx == nil {
		ctx = context.Background()
	}
	s := c.settingsFor(method, url, call)
	start := time.Now()

	engine := c.engine()
	if engine == nil {
		err := &transferError{code: CodeFailedInit, err: fmt.Errorf("%w: engine factory returned nil", ErrEnvironment)}
		c.finish(s, nil, nil, time.Since(start), err)
		return ""
	}
	defer engine.GetClient().CloseIdleConnections()

	if err := configureEngine(engine, s, c.log); err != nil {
		c.finish(s, nil, nil, time.Since(start), err)
		return ""
	}

	req := c.buildRequest(ctx, engine, s, fields, file)
	engine.SetPreRequestHook(c.finalizeHeaders(s))
	resp, err := req.Execute(s.method, s.url)
	c.finish(s, req, resp, time.Since(start), err)

	if resp == nil {
		return ""
	}
	return string(resp.Body())
}

func (c *Client) buildRequest(ctx context.Context, engine *resty.Client, s settings, fields map[string]string, file *filePart) *resty.Request {
	req := engine.R().SetContext(ctx).EnableTrace()

	if s.userAgent != "" {
		req.SetHeader("User-Agent", s.userAgent)
	}
	if s.referer != "" {
		req.SetHeader("Referer", s.referer)
	}
	if s.cookie != "" {
		req.SetHeader("Cookie", s.cookie)
	}
	if s.userPwd != "" {
		user, password, _ := strings.Cut(s.userPwd, ":")
		req.SetBasicAuth(user, password)
	}

	if len(fields) > 0 {
		req.SetFormData(fields)
	}
	if file != nil {
		req.SetFile(file.field, file.path)
	}
	return req
}

// finalizeHeaders returns a hook that runs once the engine has added its own
// defaults. Client headers go out with the exact case they were set with and
// replace any header that differs only in case, User-Agent and Content-Type
// included. Without a configured agent no User-Agent is sent.
func (c *Client) finalizeHeaders(s settings) resty.PreRequestHook {
	lines := c.RequestHeaders()
	return func(_ *resty.Client, raw *http.Request) error {
		agentSet := s.userAgent != ""
		for _, line := range lines {
			name, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			for k := range raw.Header {
				if strings.EqualFold(k, name) {
					delete(raw.Header, k)
				}
			}
			raw.Header[name] = []string{value}
			if strings.EqualFold(name, "User-Agent") {
				agentSet = true
			}
		}
		if !agentSet {
			// net/http omits User-Agent when the header is present but empty.
			raw.Header["User-Agent"] = []string{""}
		}
		return nil
	}
}

// finish records the debug snapshot (when enabled) and logs the outcome.
func (c *Client) finish(s settings, req *resty.Request, resp *resty.Response, elapsed time.Duration, err error) {
	var info *DebugInfo
	if c.debug {
		d := newDebugInfo(s, req, resp, elapsed, err)
		c.lastDebug = &d
		info = &d
	}

	fields := map[string]any{
		"method":     s.method,
		"url":        s.url,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	if resp != nil && resp.RawResponse != nil {
		fields["status"] = resp.StatusCode()
	}
	if err != nil {
		code, msg := classifyError(err)
		if info != nil {
			code, msg = info.ErrorCode, info.ErrorMessage
		}
		fields["error_code"] = code
		fields["error"] = msg
		c.log.WarnObj("transfer failed", "transfer", fields)
		return
	}
	c.log.DebugObj("transfer completed", "transfer", fields)
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s is not readable: %v", ErrFileAccess, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %s is not readable: %v", ErrFileAccess, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileAccess, path)
	}
	return nil
}

func headerLines(h http.Header) []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, k := range names {
		for _, v := range h[k] {
			if v == "" && k == "User-Agent" {
				continue
			}
			lines = append(lines, k+":"+v)
		}
	}
	return lines
}
