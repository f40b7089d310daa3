package httpclient

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, CodeOK},
		{"preclassified", &transferError{code: CodeSSLCACertBadFile, err: errors.New("bad bundle")}, CodeSSLCACertBadFile},
		{"redirects", &url.Error{Op: "Get", URL: "http://x", Err: fmt.Errorf("%w (3)", errTooManyRedirects)}, CodeTooManyRedirects},
		{"missing upload", &fs.PathError{Op: "open", Path: "/nope", Err: fs.ErrNotExist}, CodeReadError},
		{"proxy dns", &net.OpError{Op: "proxyconnect", Err: &net.DNSError{Name: "proxy.invalid"}}, CodeCouldntResolveProxy},
		{"proxy refused", &net.OpError{Op: "proxyconnect", Err: errors.New("connection refused")}, CodeCouldntConnect},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), CodeOperationTimedOut},
		{"dns", &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: &net.DNSError{Name: "x"}}}, CodeCouldntResolveHost},
		{"unknown authority", &url.Error{Op: "Get", URL: "https://x", Err: x509.UnknownAuthorityError{}}, CodePeerFailedVerification},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, CodeCouldntConnect},
		{"read", &net.OpError{Op: "read", Err: errors.New("reset")}, CodeRecvError},
		{"write", &net.OpError{Op: "write", Err: errors.New("broken pipe")}, CodeSendError},
		{"eof", &url.Error{Op: "Get", URL: "http://x", Err: io.EOF}, CodeRecvError},
		{"parse", &url.Error{Op: "parse", URL: "::", Err: errors.New("missing protocol scheme")}, CodeURLMalformat},
		{"scheme", errors.New(`Get "gopher://x": unsupported protocol scheme "gopher"`), CodeUnsupportedProtocol},
		{"no host", errors.New("http: no Host in request URL"), CodeURLMalformat},
		{"other", errors.New("something odd"), CodeFailedInit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, msg := classifyError(tc.err)
			if code != tc.want {
				t.Fatalf("code = %d, want %d (%v)", code, tc.want, tc.err)
			}
			if tc.err != nil && msg == "" {
				t.Fatalf("expected message for %v", tc.err)
			}
		})
	}
}

func TestPhaseSeconds(t *testing.T) {
	total := time.Second
	if got := phaseSeconds(-5*time.Millisecond, total); got != 0 {
		t.Fatalf("negative phase = %v", got)
	}
	if got := phaseSeconds(2*time.Second, total); got != 0 {
		t.Fatalf("phase beyond total = %v", got)
	}
	if got := phaseSeconds(500*time.Millisecond, total); got != 0.5 {
		t.Fatalf("phase = %v", got)
	}
}

func TestTransferMetadataWithoutResponse(t *testing.T) {
	meta := transferMetadata(settings{url: "http://x"}, nil, nil, 10*time.Millisecond)
	if meta["http_code"] != 0 || meta["url"] != "http://x" || meta["content_type"] != "" {
		t.Fatalf("unexpected metadata: %v", meta)
	}
	if _, ok := meta["request_header"]; ok {
		t.Fatalf("request_header should be absent without header_out")
	}
}

func TestDebugInfoCloneIsIndependent(t *testing.T) {
	d := DebugInfo{TransferMetadata: map[string]any{"http_code": 200}}
	c := d.clone()
	c.TransferMetadata["http_code"] = 500
	if d.StatusCode() != 200 {
		t.Fatalf("clone shares metadata map")
	}
	if !d.OK() {
		t.Fatalf("zero error code should be OK")
	}
}
