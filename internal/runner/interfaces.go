package runner

import (
	"context"

	"github.com/samvad-hq/samvad-fetch/internal/domain"
	"github.com/samvad-hq/samvad-fetch/pkg/httpclient"
	"github.com/samvad-hq/samvad-fetch/pkg/publishers"
)

// Client is the subset of *httpclient.Client the runner drives.
type Client interface {
	Get(ctx context.Context, url string, opts ...httpclient.CallOption) string
	Post(ctx context.Context, url string, fields map[string]string, opts ...httpclient.CallOption) string
	Upload(ctx context.Context, url, filePath, fieldName string, extraFields map[string]string, options httpclient.Options) string
	SetRequestHeaders(headers map[string]string) *httpclient.Client
	DeleteRequestHeaderNames(names ...string) *httpclient.Client
	RequestHeaders() []string
	SetDebug(enabled bool) *httpclient.Client
	Debug() (httpclient.DebugInfo, error)
}

// ResultStore journals job results.
type ResultStore interface {
	SaveResult(result domain.TransferResult) error
}

// EventPublisher publishes job results downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}
