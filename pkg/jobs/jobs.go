package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-fetch/pkg/httpclient"
	"gopkg.in/yaml.v3"
)

// Package jobs loads transfer job definitions from YAML or JSON files.

const (
	MethodGet    = "get"
	MethodPost   = "post"
	MethodUpload = "upload"
)

// Job describes one transfer to execute.
type Job struct {
	ID                    string            `json:"id" yaml:"id"`
	Name                  string            `json:"name" yaml:"name"`
	Method                string            `json:"method" yaml:"method"`
	URL                   string            `json:"url" yaml:"url"`
	Fields                map[string]string `json:"fields" yaml:"fields"`
	File                  string            `json:"file" yaml:"file"`
	FieldName             string            `json:"field_name" yaml:"field_name"`
	Headers               map[string]string `json:"headers" yaml:"headers"`
	Options               map[string]any    `json:"options" yaml:"options"`
	ConnectTimeoutSeconds int               `json:"connect_timeout_seconds" yaml:"connect_timeout_seconds"`
	ExecuteTimeoutSeconds int               `json:"execute_timeout_seconds" yaml:"execute_timeout_seconds"`
	// Extract maps result field names to CSS selectors, or to "page_meta".
	Extract map[string]string `json:"extract" yaml:"extract"`
	DelayMs int               `json:"delay_ms" yaml:"delay_ms"`
}

type registryFile struct {
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// Registry is an immutable, validated set of jobs in file order.
type Registry struct {
	jobs []Job
	idx  map[string]int
}

// LoadRegistry reads and validates a jobs file.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("jobs file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open jobs file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	parsed, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(parsed.Jobs)
}

// NewRegistry sanitizes and validates jobs and indexes them by id.
func NewRegistry(jobs []Job) (*Registry, error) {
	if len(jobs) == 0 {
		return nil, errors.New("jobs file contains no jobs entries")
	}

	reg := &Registry{
		jobs: make([]Job, 0, len(jobs)),
		idx:  make(map[string]int, len(jobs)),
	}
	for i := range jobs {
		j := sanitizeJob(jobs[i])
		if err := validateJob(j); err != nil {
			return nil, fmt.Errorf("job[%d]: %w", i, err)
		}
		if _, exists := reg.idx[j.ID]; exists {
			return nil, fmt.Errorf("duplicate job id %q", j.ID)
		}
		reg.idx[j.ID] = len(reg.jobs)
		reg.jobs = append(reg.jobs, j)
	}
	return reg, nil
}

// All returns a copy of the jobs in file order.
func (r *Registry) All() []Job {
	if r == nil {
		return nil
	}
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// ByID returns the job with the given id, if loaded.
func (r *Registry) ByID(id string) (Job, bool) {
	if r == nil {
		return Job{}, false
	}
	i, ok := r.idx[strings.TrimSpace(id)]
	if !ok {
		return Job{}, false
	}
	return r.jobs[i], true
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var errs []error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg registryFile
		if err := d.fn(data, &reg); err != nil {
			errs = append(errs, fmt.Errorf("decode %s jobs: %w", d.name, err))
			continue
		}
		return reg, nil
	}
	if len(errs) > 0 {
		return registryFile{}, errors.Join(errs...)
	}
	return registryFile{}, errors.New("jobs file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func sanitizeJob(j Job) Job {
	j.ID = strings.TrimSpace(j.ID)
	j.Name = strings.TrimSpace(j.Name)
	j.Method = strings.ToLower(strings.TrimSpace(j.Method))
	j.URL = strings.TrimSpace(j.URL)
	j.File = strings.TrimSpace(j.File)
	j.FieldName = strings.TrimSpace(j.FieldName)

	if j.Method == "" {
		j.Method = MethodGet
	}
	if j.Name == "" {
		j.Name = j.ID
	}
	if j.DelayMs < 0 {
		j.DelayMs = 0
	}
	return j
}

func validateJob(j Job) error {
	if j.ID == "" {
		return errors.New("id is required")
	}
	if j.URL == "" {
		return fmt.Errorf("url is required for job %q", j.ID)
	}
	switch j.Method {
	case MethodGet, MethodPost:
	case MethodUpload:
		if j.File == "" || j.FieldName == "" {
			return fmt.Errorf("upload job %q requires file and field_name", j.ID)
		}
	default:
		return fmt.Errorf("unsupported method %q for job %q", j.Method, j.ID)
	}
	if j.ConnectTimeoutSeconds < 0 || j.ExecuteTimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must not be negative for job %q", j.ID)
	}
	if _, err := j.ClientOptions(); err != nil {
		return err
	}
	return nil
}

// ClientOptions converts the textual options into client options.
func (j Job) ClientOptions() (httpclient.Options, error) {
	opts := make(httpclient.Options, len(j.Options))
	var unknown []string
	for name, v := range j.Options {
		opt, ok := httpclient.ParseOption(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		opts[opt] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return opts, fmt.Errorf("unknown options for job %q: %s", j.ID, strings.Join(unknown, ", "))
	}
	return opts, nil
}

// CallOptions returns the per-call timeouts set on the job; unset ones keep the client defaults.
func (j Job) CallOptions(defaultConnect, defaultExecute time.Duration) []httpclient.CallOption {
	connect, execute := j.Timeouts(defaultConnect, defaultExecute)
	var out []httpclient.CallOption
	if connect > 0 {
		out = append(out, httpclient.WithConnectTimeout(connect))
	}
	if execute > 0 {
		out = append(out, httpclient.WithExecuteTimeout(execute))
	}
	return out
}

// Timeouts resolves the connect and execute bounds of the job, falling back to
// the given defaults where the job sets none.
func (j Job) Timeouts(defaultConnect, defaultExecute time.Duration) (connect, execute time.Duration) {
	connect, execute = defaultConnect, defaultExecute
	if j.ConnectTimeoutSeconds > 0 {
		connect = time.Duration(j.ConnectTimeoutSeconds) * time.Second
	}
	if j.ExecuteTimeoutSeconds > 0 {
		execute = time.Duration(j.ExecuteTimeoutSeconds) * time.Second
	}
	return connect, execute
}

// RequestDelay returns the pause to observe before running the job.
func (j Job) RequestDelay() time.Duration {
	if j.DelayMs <= 0 {
		return 0
	}
	return time.Duration(j.DelayMs) * time.Millisecond
}
