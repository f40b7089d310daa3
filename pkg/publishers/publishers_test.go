package publishers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publishers.yaml")
	raw := `
publishers:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: http2
    type: HTTP
    http:
      url: " https://example.com/2 "
  - id: events
    type: sqs
    sqs:
      uri: https://sqs.example/queue
      region: ap-south-1
      access_key_id: key
      secret_access_key: secret
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "http2" || enabled[1].ID != "events" {
		t.Fatalf("expected http2 and events enabled, got %#v", enabled)
	}
	if enabled[0].HTTP.Method != "POST" || enabled[0].HTTP.TimeoutSeconds != 5 || enabled[0].HTTP.URL != "https://example.com/2" {
		t.Fatalf("http defaults not applied: %+v", enabled[0].HTTP)
	}
	sqsCfg, ok := reg.ByID("events")
	if !ok || sqsCfg.SQS.AccessKeyID != "key" {
		t.Fatalf("inline aws credentials not decoded: %+v", sqsCfg.SQS)
	}
}

func TestValidatePublisherConfig(t *testing.T) {
	cases := map[string]PublisherConfig{
		"missing http":   {ID: "h1", Type: TypeHTTP},
		"missing region": {ID: "q", Type: TypeSQS, SQS: &SQSPublisherConfig{QueueURL: "u"}},
		"missing arn":    {ID: "s", Type: TypeSNS, SNS: &SNSPublisherConfig{Region: "r"}},
		"missing topic":  {ID: "p", Type: TypePubSub, PubSub: &PubSubPublisherConfig{ProjectID: "x"}},
		"unknown type":   {ID: "k", Type: "kafka"},
	}
	for name, cfg := range cases {
		if err := validatePublisherConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
