package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/MindHaven/internal/genai"
	"github.com/BTreeMap/MindHaven/internal/metrics"
	"github.com/BTreeMap/MindHaven/internal/respond"
	"github.com/BTreeMap/MindHaven/internal/store"
	"github.com/BTreeMap/MindHaven/internal/testutil"
)

var configEnvKeys = []string{
	"MINDHAVEN_STATE_DIR", "DATABASE_URL", "API_ADDR", "RESPONDER", "RESPONDER_TIMEOUT",
	"RASA_SERVER_URL", "OPENAI_API_KEY", "OPENAI_MODEL", "TWILIO_ACCOUNT_SID",
	"TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER", "TWILIO_VALIDATE_SIGNATURE",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("mindhaven", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	config := loadEnvironmentConfig()

	if config.StateDir != DefaultStateDir {
		t.Errorf("StateDir = %q, want %q", config.StateDir, DefaultStateDir)
	}
	if config.Responder != ResponderLocal {
		t.Errorf("Responder = %q, want local", config.Responder)
	}
	if config.ResponderTimeout != respond.DefaultRemoteTimeout {
		t.Errorf("ResponderTimeout = %v", config.ResponderTimeout)
	}
	if config.OpenAIModel != genai.DefaultModel {
		t.Errorf("OpenAIModel = %q", config.OpenAIModel)
	}
	if !config.TwilioValidate {
		t.Error("signature validation must default to on")
	}
}

func TestLoadEnvironmentConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("MINDHAVEN_STATE_DIR", "/tmp/mh")
	t.Setenv("RESPONDER", "rasa")
	t.Setenv("RESPONDER_TIMEOUT", "3s")
	t.Setenv("TWILIO_VALIDATE_SIGNATURE", "false")

	config := loadEnvironmentConfig()

	if config.StateDir != "/tmp/mh" || config.Responder != "rasa" || config.ResponderTimeout != 3*time.Second || config.TwilioValidate {
		t.Errorf("config = %+v", config)
	}
}

func TestParseCommandLineFlagsDefaultsSQLiteToStateDir(t *testing.T) {
	config := Config{StateDir: "/tmp/env-state", Responder: "local"}

	flags, err := parseCommandLineFlags(newFlagSet(), []string{"-state-dir", "/tmp/flag-state", "-responder", " OpenAI "}, config)
	if err != nil {
		t.Fatalf("parseCommandLineFlags() error = %v", err)
	}
	if want := filepath.Join("/tmp/flag-state", DefaultDBFileName); flags.DatabaseURL != want {
		t.Errorf("DatabaseURL = %q, want %q", flags.DatabaseURL, want)
	}
	if flags.Responder != ResponderOpenAI {
		t.Errorf("Responder = %q, want openai", flags.Responder)
	}
}

func TestParseCommandLineFlagsKeepsExplicitDSN(t *testing.T) {
	config := Config{StateDir: "/tmp/state", DatabaseURL: "postgres://u:p@localhost/db"}
	flags, err := parseCommandLineFlags(newFlagSet(), nil, config)
	if err != nil {
		t.Fatalf("parseCommandLineFlags() error = %v", err)
	}
	if flags.DatabaseURL != config.DatabaseURL {
		t.Errorf("DatabaseURL = %q", flags.DatabaseURL)
	}
}

func TestParseCommandLineFlagsRejectsUnknownFlag(t *testing.T) {
	if _, err := parseCommandLineFlags(newFlagSet(), []string{"-nope"}, Config{}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestBuildStoreOptions(t *testing.T) {
	tests := []struct {
		dsn        string
		wantDriver string
	}{
		{"", ""},
		{MemoryDSN, ""},
		{"postgres://u:p@localhost/db", "postgres"},
		{"host=localhost dbname=mh", "postgres"},
		{"/tmp/mindhaven.db", "sqlite3"},
	}
	for _, tt := range tests {
		opts := buildStoreOptions(Config{DatabaseURL: tt.dsn})
		var got store.Opts
		for _, opt := range opts {
			opt(&got)
		}
		if got.Driver != tt.wantDriver {
			t.Errorf("buildStoreOptions(%q) driver = %q, want %q", tt.dsn, got.Driver, tt.wantDriver)
		}
	}
}

func TestEnsureDirectoriesExist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	if err := ensureDirectoriesExist(Config{DatabaseURL: filepath.Join(dir, DefaultDBFileName)}); err != nil {
		t.Fatalf("ensureDirectoriesExist() error = %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("state dir not created: %v", err)
	}
	if err := ensureDirectoriesExist(Config{DatabaseURL: MemoryDSN}); err != nil {
		t.Errorf("memory DSN error = %v", err)
	}
}

func TestBuildResponder(t *testing.T) {
	m := metrics.NewCollector()
	p := testutil.NewPipeline(t, m)

	tests := []struct {
		cfg      Config
		wantName string
		wantErr  error
	}{
		{Config{Responder: ""}, "local", nil},
		{Config{Responder: ResponderLocal}, "local", nil},
		{Config{Responder: ResponderRasa, RasaURL: "http://rasa:5005"}, "rasa", nil},
		{Config{Responder: ResponderOpenAI, OpenAIKey: "sk-test"}, "openai", nil},
		{Config{Responder: ResponderOpenAI}, "", genai.ErrMissingAPIKey},
		{Config{Responder: "eliza"}, "", ErrUnknownResponder},
	}
	for _, tt := range tests {
		r, err := buildResponder(tt.cfg, p.Classifier, p.Local, m)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("buildResponder(%q) error = %v, want %v", tt.cfg.Responder, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("buildResponder(%q) error = %v", tt.cfg.Responder, err)
			continue
		}
		if r.Name() != tt.wantName {
			t.Errorf("buildResponder(%q).Name() = %q, want %q", tt.cfg.Responder, r.Name(), tt.wantName)
		}
	}
}

func TestUsesLocalDatabase(t *testing.T) {
	tests := map[string]bool{
		"":                            false,
		MemoryDSN:                     false,
		"postgres://u:p@localhost/db": false,
		"/var/lib/mindhaven/x.db":     true,
	}
	for dsn, want := range tests {
		if got := usesLocalDatabase(Config{DatabaseURL: dsn}); got != want {
			t.Errorf("usesLocalDatabase(%q) = %v, want %v", dsn, got, want)
		}
	}
}

func TestTwilioConfigured(t *testing.T) {
	if twilioConfigured(Config{TwilioSID: "AC1", TwilioToken: "tok"}) {
		t.Error("missing from number must disable the channel")
	}
	if !twilioConfigured(Config{TwilioSID: "AC1", TwilioToken: "tok", TwilioFrom: "+15550000"}) {
		t.Error("fully configured Twilio not detected")
	}
}
