package clientconfig

import (
	"strings"
	"testing"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
address: backup.example.com
backup_path: /home/joe/docs
username: joe
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Errorf("got port %d, want %d", cfg.Port, defaultPort)
	}
	if cfg.DelayMillis != defaultDelayMillis {
		t.Errorf("got delay %d, want %d", cfg.DelayMillis, defaultDelayMillis)
	}
	if cfg.RetryBudget != defaultRetryBudget {
		t.Errorf("got retry budget %d, want %d", cfg.RetryBudget, defaultRetryBudget)
	}
}

func TestParseExplicitValues(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
address: backup.example.com
port: 9000
backup_path: /home/joe/docs
username: joe
delay_ms: 1000
retry_budget: 3
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 9000 || cfg.DelayMillis != 1000 || cfg.RetryBudget != 3 {
		t.Errorf("got %+v, explicit values not preserved", cfg)
	}
}

func TestParseMissingRequiredField(t *testing.T) {
	_, err := Parse(strings.NewReader(`
port: 9000
`))
	if err == nil {
		t.Fatal("expected error for missing address/backup_path/username")
	}
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse(strings.NewReader("address: [unterminated"))
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestParseTokenNeverReadFromFile(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
address: backup.example.com
backup_path: /home/joe/docs
username: joe
token: should-be-ignored
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Token != "" {
		t.Errorf("got token %q, want empty: token is runtime-only", cfg.Token)
	}
}
