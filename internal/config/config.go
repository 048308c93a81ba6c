package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for KindleGoat.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"   yaml:"source"`
	Sync     SyncConfig     `mapstructure:"sync"     yaml:"sync"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Proxy    ProxyConfig    `mapstructure:"proxy"    yaml:"proxy"`
	Browser  BrowserConfig  `mapstructure:"browser"  yaml:"browser"`
	Submit   SubmitConfig   `mapstructure:"submit"   yaml:"submit"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
}

// SourceConfig selects the notebook site. Region is one of the keys in Regions.
type SourceConfig struct {
	Region       string `mapstructure:"region"        yaml:"region"`
	NotebookPath string `mapstructure:"notebook_path" yaml:"notebook_path"`
	SignInMarker string `mapstructure:"signin_marker" yaml:"signin_marker"`
}

// SyncConfig holds the polling, settling and politeness knobs of a sync run.
type SyncConfig struct {
	PreferLiveDOM     bool          `mapstructure:"prefer_live_dom"    yaml:"prefer_live_dom"`
	PolitenessDelay   time.Duration `mapstructure:"politeness_delay"   yaml:"politeness_delay"`
	SettleTimeout     time.Duration `mapstructure:"settle_timeout"     yaml:"settle_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"      yaml:"poll_interval"`
	SettleRetries     int           `mapstructure:"settle_retries"     yaml:"settle_retries"`
	SignatureLength   int           `mapstructure:"signature_length"   yaml:"signature_length"`
	ScrollWait        time.Duration `mapstructure:"scroll_wait"        yaml:"scroll_wait"`
	SpinnerTimeout    time.Duration `mapstructure:"spinner_timeout"    yaml:"spinner_timeout"`
	MaxScrollIters    int           `mapstructure:"max_scroll_iters"   yaml:"max_scroll_iters"`
	StableIterations  int           `mapstructure:"stable_iterations"  yaml:"stable_iterations"`
	ReachabilityCheck time.Duration `mapstructure:"reachability_check" yaml:"reachability_check"`
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	CookiesFile     string        `mapstructure:"cookies_file"      yaml:"cookies_file"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled      bool     `mapstructure:"enabled"        yaml:"enabled"`
	Rotation     string   `mapstructure:"rotation"       yaml:"rotation"`
	URLs         []string `mapstructure:"urls"           yaml:"urls"`
	RotateOnFail bool     `mapstructure:"rotate_on_fail" yaml:"rotate_on_fail"`
}

// BrowserConfig controls the live notebook page.
type BrowserConfig struct {
	Enabled     bool          `mapstructure:"enabled"       yaml:"enabled"`
	Headless    bool          `mapstructure:"headless"      yaml:"headless"`
	ControlURL  string        `mapstructure:"control_url"   yaml:"control_url"`
	Bin         string        `mapstructure:"bin"           yaml:"bin"`
	UserDataDir string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Stealth     bool          `mapstructure:"stealth"       yaml:"stealth"`
	WindowSize  string        `mapstructure:"window_size"   yaml:"window_size"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"   yaml:"nav_timeout"`
}

// SubmitConfig selects the submission backend.
type SubmitConfig struct {
	Type       string        `mapstructure:"type"         yaml:"type"`
	Targets    []string      `mapstructure:"targets"      yaml:"targets"`
	Endpoint   string        `mapstructure:"endpoint"     yaml:"endpoint"`
	Token      string        `mapstructure:"token"        yaml:"token"`
	Timeout    time.Duration `mapstructure:"timeout"      yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"  yaml:"max_retries"`
	MongoURI   string        `mapstructure:"mongo_uri"    yaml:"mongo_uri"`
	MongoDB    string        `mapstructure:"mongo_db"     yaml:"mongo_db"`
	MongoColl  string        `mapstructure:"mongo_coll"   yaml:"mongo_coll"`
	OutputPath string        `mapstructure:"output_path"  yaml:"output_path"`
	DryRun     bool          `mapstructure:"dry_run"      yaml:"dry_run"`
}

// ScheduleConfig controls the background (fetch-only) trigger.
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Cron    string `mapstructure:"cron"    yaml:"cron"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// APIConfig controls the HTTP control API of long-running commands.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port"    yaml:"port"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Region:       "com",
			NotebookPath: "/notebook",
			SignInMarker: "signin",
		},
		Sync: SyncConfig{
			PreferLiveDOM:     true,
			PolitenessDelay:   500 * time.Millisecond,
			SettleTimeout:     5 * time.Second,
			PollInterval:      200 * time.Millisecond,
			SettleRetries:     1,
			SignatureLength:   50,
			ScrollWait:        1 * time.Second,
			SpinnerTimeout:    5 * time.Second,
			MaxScrollIters:    50,
			StableIterations:  2,
			ReachabilityCheck: 10 * time.Second,
		},
		Fetcher: FetcherConfig{
			RequestTimeout:  30 * time.Second,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    10,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Proxy: ProxyConfig{
			Enabled:      false,
			Rotation:     "round_robin",
			RotateOnFail: true,
		},
		Browser: BrowserConfig{
			Enabled:    true,
			Headless:   false,
			Stealth:    true,
			WindowSize: "1366,900",
			NavTimeout: 30 * time.Second,
		},
		Submit: SubmitConfig{
			Type:       "json",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			MongoDB:    "kindlegoat",
			MongoColl:  "highlights",
			OutputPath: "./output/highlights.json",
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Cron:    "0 */6 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		API: APIConfig{
			Enabled: false,
			Port:    8686,
		},
	}
}
