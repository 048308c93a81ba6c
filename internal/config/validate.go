package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// CronParser parses the five-field schedule expressions accepted in config.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if _, ok := Regions[cfg.Source.Region]; !ok {
		if err := ValidateURL(cfg.Source.Region); err != nil {
			return fmt.Errorf("source.region %q is not supported (valid: %s)",
				cfg.Source.Region, strings.Join(RegionKeys(), ", "))
		}
	}
	if cfg.Source.SignInMarker == "" {
		return fmt.Errorf("source.signin_marker must not be empty")
	}

	if cfg.Sync.PolitenessDelay < 0 {
		return fmt.Errorf("sync.politeness_delay must be >= 0")
	}
	if cfg.Sync.SettleTimeout <= 0 {
		return fmt.Errorf("sync.settle_timeout must be > 0")
	}
	if cfg.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be > 0")
	}
	if cfg.Sync.SettleRetries < 0 {
		return fmt.Errorf("sync.settle_retries must be >= 0, got %d", cfg.Sync.SettleRetries)
	}
	if cfg.Sync.SignatureLength < 1 {
		return fmt.Errorf("sync.signature_length must be >= 1, got %d", cfg.Sync.SignatureLength)
	}
	if cfg.Sync.MaxScrollIters < 1 {
		return fmt.Errorf("sync.max_scroll_iters must be >= 1, got %d", cfg.Sync.MaxScrollIters)
	}
	if cfg.Sync.StableIterations < 1 {
		return fmt.Errorf("sync.stable_iterations must be >= 1, got %d", cfg.Sync.StableIterations)
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	if err := validateSubmit(&cfg.Submit); err != nil {
		return err
	}

	if cfg.Schedule.Enabled {
		if _, err := CronParser.Parse(cfg.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron %q is invalid: %w", cfg.Schedule.Cron, err)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	if cfg.API.Enabled {
		if cfg.API.Port < 1 || cfg.API.Port > 65535 {
			return fmt.Errorf("api.port must be 1-65535, got %d", cfg.API.Port)
		}
		if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.API.Port {
			return fmt.Errorf("api.port and metrics.port must differ")
		}
	}

	return nil
}

var validSubmitTypes = map[string]bool{
	"api": true, "mongodb": true, "json": true, "jsonl": true, "csv": true, "multi": true,
}

func validateSubmit(cfg *SubmitConfig) error {
	if !validSubmitTypes[cfg.Type] {
		return fmt.Errorf("submit.type %q is not supported (valid: api, mongodb, json, jsonl, csv, multi)", cfg.Type)
	}
	targets := []string{cfg.Type}
	if cfg.Type == "multi" {
		if len(cfg.Targets) == 0 {
			return fmt.Errorf("submit.targets must list at least one backend when submit.type is 'multi'")
		}
		targets = cfg.Targets
	}
	for _, t := range targets {
		if t == "multi" || !validSubmitTypes[t] {
			return fmt.Errorf("submit target %q is not supported", t)
		}
		switch t {
		case "api":
			if err := ValidateURL(cfg.Endpoint); err != nil {
				return fmt.Errorf("submit.endpoint: %w", err)
			}
		case "mongodb":
			if cfg.MongoURI == "" {
				return fmt.Errorf("submit.mongo_uri is required for the mongodb backend")
			}
		default:
			if cfg.OutputPath == "" {
				return fmt.Errorf("submit.output_path is required for the %s backend", t)
			}
		}
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("submit.timeout must be > 0")
	}
	return nil
}

// ValidateURL checks that a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
