package config

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/liurenke/renkebot/internal/apperr"
)

// Environment tags used to key per-service host mappings.
const (
	EnvContainer = "container"
	EnvCloud     = "cloud"
	EnvLocal     = "local"
)

const (
	// containerMarker exists inside docker-style containers.
	containerMarker = "/.dockerenv"

	// cloudMetadataURL is the link-local instance-metadata endpoint.
	// Reachable only when running on a cloud instance.
	cloudMetadataURL = "http://169.254.169.254/latest/meta-data/"

	cloudProbeTimeout = 100 * time.Millisecond
)

// Endpoint is a fully resolved service endpoint. Immutable for the
// process lifetime; re-resolution happens only on restart.
type Endpoint struct {
	Host string
	Port int
	DB   int
	DSN  string
	TTL  time.Duration
}

// Addr returns the host:port pair of the endpoint.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

var (
	detectOnce  sync.Once
	detectedEnv string
)

// DetectEnvironment reports which deployment environment the process is
// running in. The probe sequence runs once; the result is cached for the
// process lifetime.
func DetectEnvironment() string {
	detectOnce.Do(func() {
		detectedEnv = detectEnvironment(containerMarker, cloudMetadataURL)
	})
	return detectedEnv
}

func detectEnvironment(markerPath, metadataURL string) string {
	if _, err := os.Stat(markerPath); err == nil {
		return EnvContainer
	}
	client := &http.Client{Timeout: cloudProbeTimeout}
	resp, err := client.Get(metadataURL)
	if err == nil {
		resp.Body.Close()
		return EnvCloud
	}
	return EnvLocal
}

// ResolveEndpoint materializes the endpoint for the named service,
// selecting the host entry that matches env. When env has no entry the
// defaultTag is tried; when that is also absent resolution fails with a
// configuration error naming the missing tags and the available ones.
func (c *Config) ResolveEndpoint(name, env string) (Endpoint, error) {
	svc, ok := c.Services[name]
	if !ok {
		return Endpoint{}, apperr.Configuration("service %q is not configured", name)
	}

	host := svc.Host
	if host == "" && len(svc.Hosts) > 0 {
		var found bool
		host, found = svc.Hosts[env]
		if !found {
			defaultTag := c.DefaultEnvironment
			if defaultTag == "" {
				defaultTag = EnvLocal
			}
			host, found = svc.Hosts[defaultTag]
			if !found {
				return Endpoint{}, apperr.Configuration(
					"service %q has no host for environment %q or default %q (available: %s)",
					name, env, defaultTag, strings.Join(hostTags(svc.Hosts), ", "))
			}
		}
	}
	if host == "" && svc.DSN == "" && svc.Backend != "memory" {
		return Endpoint{}, apperr.Configuration("service %q has neither host nor dsn", name)
	}

	return Endpoint{
		Host: host,
		Port: svc.Port,
		DB:   svc.DB,
		DSN:  svc.DSN,
		TTL:  svc.TTL,
	}, nil
}

func hostTags(hosts map[string]string) []string {
	tags := make([]string, 0, len(hosts))
	for tag := range hosts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
