package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Transfer error codes, numbered after the classic transfer-library codes so
// existing tooling can interpret them.
const (
	CodeOK                     = 0
	CodeUnsupportedProtocol    = 1
	CodeFailedInit             = 2 // engine unavailable, or the failure could not be classified
	CodeURLMalformat           = 3
	CodeCouldntResolveProxy    = 5
	CodeCouldntResolveHost     = 6
	CodeCouldntConnect         = 7
	CodeReadError              = 26
	CodeOperationTimedOut      = 28
	CodeSSLConnectError        = 35
	CodeTooManyRedirects       = 47
	CodeSendError              = 55
	CodeRecvError              = 56
	CodePeerFailedVerification = 60
	CodeSSLCACertBadFile       = 77
)

// DebugInfo is the diagnostic snapshot captured after a transfer when debugging is enabled.
type DebugInfo struct {
	ErrorCode        int            `json:"error_code"`
	ErrorMessage     string         `json:"error_message"`
	TransferMetadata map[string]any `json:"transfer_metadata"`
}

// OK reports whether the transfer completed without a transport error.
// A non-2xx HTTP status is still OK at this level.
func (d DebugInfo) OK() bool { return d.ErrorCode == CodeOK }

// StatusCode returns the HTTP status recorded in the metadata, or 0 when no response arrived.
func (d DebugInfo) StatusCode() int {
	if code, ok := d.TransferMetadata["http_code"].(int); ok {
		return code
	}
	return 0
}

func (d DebugInfo) clone() DebugInfo {
	out := d
	if d.TransferMetadata != nil {
		out.TransferMetadata = make(map[string]any, len(d.TransferMetadata))
		for k, v := range d.TransferMetadata {
			out.TransferMetadata[k] = v
		}
	}
	return out
}

func newDebugInfo(s settings, req *resty.Request, resp *resty.Response, elapsed time.Duration, err error) DebugInfo {
	code, msg := classifyError(err)
	return DebugInfo{
		ErrorCode:        code,
		ErrorMessage:     msg,
		TransferMetadata: transferMetadata(s, req, resp, elapsed),
	}
}

// classifyError maps an engine error to a transfer error code.
func classifyError(err error) (int, string) {
	if err == nil {
		return CodeOK, ""
	}
	msg := err.Error()

	var te *transferError
	if errors.As(err, &te) {
		return te.code, msg
	}
	if errors.Is(err, errTooManyRedirects) {
		return CodeTooManyRedirects, msg
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return CodeReadError, msg
	}

	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
	)
	if errors.As(err, &opErr) && opErr.Op == "proxyconnect" {
		if errors.As(err, &dnsErr) {
			return CodeCouldntResolveProxy, msg
		}
		return CodeCouldntConnect, msg
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeOperationTimedOut, msg
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeOperationTimedOut, msg
	}

	if errors.As(err, &dnsErr) {
		return CodeCouldntResolveHost, msg
	}

	var (
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	if errors.As(err, &verifyErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) || errors.As(err, &invalidErr) {
		return CodePeerFailedVerification, msg
	}

	var (
		recordErr tls.RecordHeaderError
		alertErr  tls.AlertError
	)
	if errors.As(err, &recordErr) || errors.As(err, &alertErr) {
		return CodeSSLConnectError, msg
	}

	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return CodeCouldntConnect, msg
		case "read":
			return CodeRecvError, msg
		case "write":
			return CodeSendError, msg
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return CodeRecvError, msg
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return CodeURLMalformat, msg
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unsupported protocol scheme"):
		return CodeUnsupportedProtocol, msg
	case strings.Contains(lower, "no host in request url"),
		strings.Contains(lower, "missing protocol scheme"),
		strings.Contains(lower, "invalid url"):
		return CodeURLMalformat, msg
	case strings.Contains(lower, "tls:"):
		return CodeSSLConnectError, msg
	}
	return CodeFailedInit, msg
}

// transferMetadata collects timing and response facts for the debug record.
// Timing phases that did not happen (or cannot be measured, e.g. DNS for an
// IP literal) are reported as 0.
func transferMetadata(s settings, req *resty.Request, resp *resty.Response, elapsed time.Duration) map[string]any {
	meta := map[string]any{
		"url":                s.url,
		"http_code":          0,
		"content_type":       "",
		"total_time":         elapsed.Seconds(),
		"namelookup_time":    0.0,
		"connect_time":       0.0,
		"appconnect_time":    0.0,
		"starttransfer_time": 0.0,
		"size_download":      0,
		"primary_ip":         "",
		"conn_reused":        false,
	}

	if req != nil {
		trace := req.TraceInfo()
		meta["namelookup_time"] = phaseSeconds(trace.DNSLookup, elapsed)
		meta["connect_time"] = phaseSeconds(trace.TCPConnTime, elapsed)
		meta["appconnect_time"] = phaseSeconds(trace.TLSHandshake, elapsed)
		meta["starttransfer_time"] = phaseSeconds(trace.ServerTime, elapsed)
		meta["conn_reused"] = trace.IsConnReused
		if trace.RemoteAddr != nil {
			if host, _, err := net.SplitHostPort(trace.RemoteAddr.String()); err == nil {
				meta["primary_ip"] = host
			}
		}
		if s.headerOut {
			meta["request_header"] = requestHeaderLines(req)
		}
	}

	if resp != nil && resp.RawResponse != nil {
		meta["http_code"] = resp.StatusCode()
		meta["content_type"] = resp.Header().Get("Content-Type")
		meta["size_download"] = len(resp.Body())
		if raw := resp.RawResponse.Request; raw != nil && raw.URL != nil {
			meta["url"] = raw.URL.String()
		}
	}
	return meta
}

func phaseSeconds(d, total time.Duration) float64 {
	if d <= 0 || d > total {
		return 0
	}
	return d.Seconds()
}

func requestHeaderLines(req *resty.Request) []string {
	if req.RawRequest == nil {
		return []string{}
	}
	return headerLines(req.RawRequest.Header)
}
