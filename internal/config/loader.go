package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from .env, file, and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller on top of the returned Config.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// A missing .env is the common case
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("KINDLEGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("kindlegoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".kindlegoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("source.region", cfg.Source.Region)
	v.SetDefault("source.notebook_path", cfg.Source.NotebookPath)
	v.SetDefault("source.signin_marker", cfg.Source.SignInMarker)

	v.SetDefault("sync.prefer_live_dom", cfg.Sync.PreferLiveDOM)
	v.SetDefault("sync.politeness_delay", cfg.Sync.PolitenessDelay)
	v.SetDefault("sync.settle_timeout", cfg.Sync.SettleTimeout)
	v.SetDefault("sync.poll_interval", cfg.Sync.PollInterval)
	v.SetDefault("sync.settle_retries", cfg.Sync.SettleRetries)
	v.SetDefault("sync.signature_length", cfg.Sync.SignatureLength)
	v.SetDefault("sync.scroll_wait", cfg.Sync.ScrollWait)
	v.SetDefault("sync.spinner_timeout", cfg.Sync.SpinnerTimeout)
	v.SetDefault("sync.max_scroll_iters", cfg.Sync.MaxScrollIters)
	v.SetDefault("sync.stable_iterations", cfg.Sync.StableIterations)
	v.SetDefault("sync.reachability_check", cfg.Sync.ReachabilityCheck)

	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.cookies_file", cfg.Fetcher.CookiesFile)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)
	v.SetDefault("proxy.rotate_on_fail", cfg.Proxy.RotateOnFail)

	v.SetDefault("browser.enabled", cfg.Browser.Enabled)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.control_url", cfg.Browser.ControlURL)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.window_size", cfg.Browser.WindowSize)
	v.SetDefault("browser.nav_timeout", cfg.Browser.NavTimeout)

	v.SetDefault("submit.type", cfg.Submit.Type)
	v.SetDefault("submit.targets", cfg.Submit.Targets)
	v.SetDefault("submit.endpoint", cfg.Submit.Endpoint)
	v.SetDefault("submit.token", cfg.Submit.Token)
	v.SetDefault("submit.timeout", cfg.Submit.Timeout)
	v.SetDefault("submit.max_retries", cfg.Submit.MaxRetries)
	v.SetDefault("submit.mongo_uri", cfg.Submit.MongoURI)
	v.SetDefault("submit.mongo_db", cfg.Submit.MongoDB)
	v.SetDefault("submit.mongo_coll", cfg.Submit.MongoColl)
	v.SetDefault("submit.output_path", cfg.Submit.OutputPath)
	v.SetDefault("submit.dry_run", cfg.Submit.DryRun)

	v.SetDefault("schedule.enabled", cfg.Schedule.Enabled)
	v.SetDefault("schedule.cron", cfg.Schedule.Cron)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("api.enabled", cfg.API.Enabled)
	v.SetDefault("api.port", cfg.API.Port)
}
