package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-fetch/internal/domain"
	"github.com/samvad-hq/samvad-fetch/internal/logger"
	"github.com/samvad-hq/samvad-fetch/pkg/httpclient"
	"github.com/samvad-hq/samvad-fetch/pkg/jobs"
	"github.com/samvad-hq/samvad-fetch/pkg/publishers"
)

// Options tunes the default per-call timeouts of a Service.
type Options struct {
	ConnectTimeout time.Duration
	ExecuteTimeout time.Duration
}

// Service executes jobs one after another on a single client, journals each
// result and publishes it.
type Service struct {
	client    Client
	publisher EventPublisher
	store     ResultStore
	log       logger.Logger
	opts      Options
}

// NewService wires a runner. publisher and store are optional.
func NewService(client Client, publisher EventPublisher, store ResultStore, log logger.Logger, opts Options) *Service {
	if log == nil {
		log = &logger.NopLogger{}
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = httpclient.DefaultConnectTimeout
	}
	if opts.ExecuteTimeout <= 0 {
		opts.ExecuteTimeout = httpclient.DefaultExecuteTimeout
	}
	return &Service{
		client:    client,
		publisher: publisher,
		store:     store,
		log:       log,
		opts:      opts,
	}
}

// Run executes every job once, in order. Failures of individual jobs do not stop
// the pass; they are joined into the returned error.
func (s *Service) Run(ctx context.Context, list []jobs.Job) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("runner service is not initialized")
	}
	if len(list) == 0 {
		return fmt.Errorf("no jobs configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Results are built from the debug record, so capture must be on.
	s.client.SetDebug(true)

	var errs []error
	for i, job := range list {
		if i > 0 && job.RequestDelay() > 0 {
			timer := time.NewTimer(job.RequestDelay())
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(append(errs, ctx.Err())...)
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		if _, err := s.RunJob(ctx, job); err != nil {
			errs = append(errs, err)
			s.log.ErrorObj("job failed", "job_error", map[string]any{
				"job_id": job.ID,
				"error":  err.Error(),
			})
		}
	}
	return errors.Join(errs...)
}

// RunJob executes a single job and returns its result. The result is returned
// even when the transfer, journal or publish step failed.
func (s *Service) RunJob(ctx context.Context, job jobs.Job) (domain.TransferResult, error) {
	result := domain.TransferResult{
		JobID:     job.ID,
		JobName:   job.Name,
		Method:    job.Method,
		URL:       job.URL,
		StartedAt: time.Now().UTC(),
	}

	opts, err := job.ClientOptions()
	if err != nil {
		return result, err
	}

	restore := s.applyHeaders(job.Headers)
	body := s.dispatch(ctx, job, opts)
	restore()

	result.ElapsedMs = time.Since(result.StartedAt).Milliseconds()
	result.BodyBytes = len(body)
	if body != "" {
		sum := sha256.Sum256([]byte(body))
		result.BodySHA256 = hex.EncodeToString(sum[:])
	}

	var errs []error
	info, err := s.client.Debug()
	if err != nil {
		errs = append(errs, fmt.Errorf("job %s: read debug record: %w", job.ID, err))
	} else {
		result.StatusCode = info.StatusCode()
		result.ErrorCode = info.ErrorCode
		result.ErrorMessage = info.ErrorMessage
		result.Metadata = info.TransferMetadata
	}
	if result.Failed() {
		errs = append(errs, fmt.Errorf("job %s: transfer error %d: %s", job.ID, result.ErrorCode, result.ErrorMessage))
	}

	extracted, err := extractFields(body, job.Extract)
	if err != nil {
		s.log.WarnObj("field extraction failed", "extract_error", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	}
	result.Extracted = extracted

	if s.store != nil {
		if err := s.store.SaveResult(result); err != nil {
			errs = append(errs, fmt.Errorf("job %s: journal result: %w", job.ID, err))
		}
	}
	if s.publisher != nil {
		if _, err := s.publisher.Publish(ctx, publishers.NewEvent(result)); err != nil {
			errs = append(errs, fmt.Errorf("job %s: publish result: %w", job.ID, err))
		}
	}

	s.log.InfoObj("job completed", "job_result", map[string]any{
		"job_id":      job.ID,
		"method":      job.Method,
		"status":      result.StatusCode,
		"error_code":  result.ErrorCode,
		"body_bytes":  result.BodyBytes,
		"elapsed_ms":  result.ElapsedMs,
		"extractions": len(result.Extracted),
	})
	return result, errors.Join(errs...)
}

func (s *Service) dispatch(ctx context.Context, job jobs.Job, opts httpclient.Options) string {
	switch job.Method {
	case jobs.MethodPost:
		return s.client.Post(ctx, job.URL, job.Fields, s.callOptions(job, opts)...)
	case jobs.MethodUpload:
		// Upload takes no call options, so the resolved timeouts travel as
		// options. Explicit job options still win, as they do for Get and Post.
		connect, execute := job.Timeouts(s.opts.ConnectTimeout, s.opts.ExecuteTimeout)
		merged := httpclient.Options{
			httpclient.OptConnectTimeout: connect,
			httpclient.OptTimeout:        execute,
		}
		for k, v := range opts {
			merged[k] = v
		}
		return s.client.Upload(ctx, job.URL, job.File, job.FieldName, job.Fields, merged)
	default:
		return s.client.Get(ctx, job.URL, s.callOptions(job, opts)...)
	}
}

func (s *Service) callOptions(job jobs.Job, opts httpclient.Options) []httpclient.CallOption {
	return append(job.CallOptions(s.opts.ConnectTimeout, s.opts.ExecuteTimeout), httpclient.WithOptions(opts))
}

// applyHeaders sets the job headers on the client and returns a func that puts
// the previous default headers back.
func (s *Service) applyHeaders(headers map[string]string) func() {
	if len(headers) == 0 {
		return func() {}
	}

	previous := make(map[string]string)
	for _, line := range s.client.RequestHeaders() {
		if name, value, ok := strings.Cut(line, ":"); ok {
			previous[name] = value
		}
	}
	s.client.SetRequestHeaders(headers)

	return func() {
		names := make([]string, 0, len(headers))
		restored := make(map[string]string)
		for name := range headers {
			names = append(names, name)
			if value, ok := previous[name]; ok {
				restored[name] = value
			}
		}
		s.client.DeleteRequestHeaderNames(names...)
		if len(restored) > 0 {
			s.client.SetRequestHeaders(restored)
		}
	}
}
