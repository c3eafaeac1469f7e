package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/liurenke/renkebot/internal/apperr"
)

func TestDetectEnvironmentContainerMarker(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "dockerenv")
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if got := detectEnvironment(marker, "http://127.0.0.1:1/"); got != EnvContainer {
		t.Fatalf("detectEnvironment() = %q, want %q", got, EnvContainer)
	}
}

func TestDetectEnvironmentCloudProbe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	if got := detectEnvironment(filepath.Join(t.TempDir(), "absent"), ts.URL); got != EnvCloud {
		t.Fatalf("detectEnvironment() = %q, want %q", got, EnvCloud)
	}
}

func TestDetectEnvironmentFallsBackToLocal(t *testing.T) {
	// No marker, metadata endpoint unreachable.
	if got := detectEnvironment(filepath.Join(t.TempDir(), "absent"), "http://127.0.0.1:1/"); got != EnvLocal {
		t.Fatalf("detectEnvironment() = %q, want %q", got, EnvLocal)
	}
}

func baseConfig(svc ServiceConfig) *Config {
	cfg := Defaults()
	cfg.Services = map[string]ServiceConfig{HistoryStoreService: svc}
	return &cfg
}

func TestResolveEndpointSelectsDetectedTag(t *testing.T) {
	cfg := baseConfig(ServiceConfig{
		Backend: "redis",
		Hosts:   map[string]string{"cloud": "h1", "local": "h2"},
		Port:    6379,
		TTL:     time.Hour,
	})

	ep, err := cfg.ResolveEndpoint(HistoryStoreService, EnvLocal)
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v", err)
	}
	if ep.Host != "h2" {
		t.Fatalf("Host = %q, want %q", ep.Host, "h2")
	}
	if ep.Addr() != "h2:6379" {
		t.Fatalf("Addr() = %q, want %q", ep.Addr(), "h2:6379")
	}
}

func TestResolveEndpointFallsBackToDefaultTag(t *testing.T) {
	cfg := baseConfig(ServiceConfig{
		Backend: "redis",
		Hosts:   map[string]string{"local": "h2"},
		TTL:     time.Hour,
	})

	ep, err := cfg.ResolveEndpoint(HistoryStoreService, EnvCloud)
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v", err)
	}
	if ep.Host != "h2" {
		t.Fatalf("Host = %q, want fallback %q", ep.Host, "h2")
	}
}

func TestResolveEndpointMissingTagFails(t *testing.T) {
	cfg := baseConfig(ServiceConfig{
		Backend: "redis",
		Hosts:   map[string]string{"cloud": "h1"},
		TTL:     time.Hour,
	})

	_, err := cfg.ResolveEndpoint(HistoryStoreService, EnvLocal)
	if err == nil {
		t.Fatalf("ResolveEndpoint() should fail when neither tag resolves")
	}
	if apperr.KindOf(err) != apperr.KindConfiguration {
		t.Fatalf("error kind = %q, want %q", apperr.KindOf(err), apperr.KindConfiguration)
	}
	if !strings.Contains(err.Error(), "cloud") {
		t.Fatalf("error should list available tags, got %v", err)
	}
}

func TestResolveEndpointLiteralHostWinsOverTags(t *testing.T) {
	cfg := baseConfig(ServiceConfig{
		Backend: "redis",
		Host:    "literal-host",
		Hosts:   map[string]string{"local": "h2"},
		TTL:     time.Hour,
	})

	ep, err := cfg.ResolveEndpoint(HistoryStoreService, EnvLocal)
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v", err)
	}
	if ep.Host != "literal-host" {
		t.Fatalf("Host = %q, want literal host", ep.Host)
	}
}

func TestResolveEndpointUnknownService(t *testing.T) {
	cfg := Defaults()
	if _, err := cfg.ResolveEndpoint("vector-store", EnvLocal); err == nil {
		t.Fatalf("ResolveEndpoint() should fail for unconfigured service")
	}
}
