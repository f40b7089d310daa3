package httpclient

import (
	"testing"
	"time"
)

type recordingLogger struct {
	noopLogger
	warnings []string
}

func (r *recordingLogger) WarnObj(msg, _ string, _ any) { r.warnings = append(r.warnings, msg) }

func TestParseOption(t *testing.T) {
	cases := map[string]struct {
		want Option
		ok   bool
	}{
		"timeout":             {OptTimeout, true},
		"  SSL_VERIFY_PEER  ": {OptVerifyPeer, true},
		"follow_location":     {OptFollowLocation, true},
		"returntransfer":      {Option("returntransfer"), false},
	}
	for in, tc := range cases {
		got, ok := ParseOption(in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseOption(%q) = (%q, %v), want (%q, %v)", in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestToTimeout(t *testing.T) {
	cases := []struct {
		in      any
		want    time.Duration
		wantErr bool
	}{
		{in: 30, want: 30 * time.Second},
		{in: int64(2), want: 2 * time.Second},
		{in: "15", want: 15 * time.Second},
		{in: "1m30s", want: 90 * time.Second},
		{in: 250 * time.Millisecond, want: 250 * time.Millisecond},
		{in: -1, wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tc := range cases {
		got, err := toTimeout(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("toTimeout(%v) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("toTimeout(%v): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("toTimeout(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestApplySkipsUnknownAndInvalidOptions(t *testing.T) {
	log := &recordingLogger{}
	s := settings{userAgent: "keep", maxRedirs: 10}

	Options{
		Option("bogus"):   1,
		OptMaxRedirs:      "many",
		OptUserAgent:      "next",
		OptFollowLocation: "true",
	}.apply(&s, log)

	if s.userAgent != "next" {
		t.Fatalf("userAgent = %q", s.userAgent)
	}
	if s.maxRedirs != 10 {
		t.Fatalf("invalid max_redirs should leave default, got %d", s.maxRedirs)
	}
	if !s.followLocation {
		t.Fatalf("expected string bool to be coerced")
	}
	if len(log.warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", log.warnings)
	}
}

func TestCallOptionsMergeOptions(t *testing.T) {
	cfg := newCallConfig([]CallOption{
		WithOptions(Options{OptReferer: "a"}),
		nil,
		WithOptions(Options{OptReferer: "b", OptCookie: "c=1"}),
		WithConnectTimeout(3 * time.Second),
	})
	if cfg.options[OptReferer] != "b" || cfg.options[OptCookie] != "c=1" {
		t.Fatalf("options = %v", cfg.options)
	}
	if cfg.connectTimeout != 3*time.Second || cfg.executeTimeout != DefaultExecuteTimeout {
		t.Fatalf("timeouts = %s/%s", cfg.connectTimeout, cfg.executeTimeout)
	}
}
