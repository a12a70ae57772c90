// Package config loads calculator settings from defaults, an optional TOML
// file, a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultRPCURL           = "http://127.0.0.1:48337"
	DefaultHashrate         = 1e15
	DefaultTargetDays       = 3.0
	DefaultHashesPerDiff    = 4294967296.0
	DefaultForkDepth        = 100
	DefaultProgressInterval = 1000
	DefaultOutputFile       = "reorg_calculations.txt"
	DefaultDotenvFile       = ".env"
)

// DefaultCandidateDepths mirrors the search defaults.
var DefaultCandidateDepths = []uint64{1, 10, 50, 100, 500, 1000, 5000}

type Config struct {
	RPC     RPCConfig     `toml:"RPC"`
	Calc    CalcConfig    `toml:"Calc"`
	Output  OutputConfig  `toml:"Output"`
	Cache   CacheConfig   `toml:"Cache"`
	Breaker BreakerConfig `toml:"Breaker"`
	Server  ServerConfig  `toml:"Server"`
	Tracing TracingConfig `toml:"Tracing"`
	Alert   AlertConfig   `toml:"Alert"`
	Log     LogConfig     `toml:"Log"`
}

type RPCConfig struct {
	URL            string  `toml:"URL"`
	User           string  `toml:"User"`
	Password       string  `toml:"Password"`
	Port           int     `toml:"Port"` // replaces the URL port when > 0
	TimeoutSec     int     `toml:"TimeoutSec"`
	RateLimitRPS   float64 `toml:"RateLimitRPS"`
	RateLimitBurst int     `toml:"RateLimitBurst"`
	Network        string  `toml:"Network"`
}

type CalcConfig struct {
	Hashrate            float64  `toml:"Hashrate"`
	TargetDays          float64  `toml:"TargetDays"`
	HashesPerDifficulty float64  `toml:"HashesPerDifficulty"`
	CandidateDepths     []uint64 `toml:"CandidateDepths"`
	DefaultForkDepth    uint64   `toml:"DefaultForkDepth"`
	ProgressInterval    uint64   `toml:"ProgressInterval"`
}

type OutputConfig struct {
	File string `toml:"File"`
}

type CacheConfig struct {
	Size          int    `toml:"Size"`
	TTLSec        int    `toml:"TTLSec"`
	StoreDir      string `toml:"StoreDir"`
	StoreMinDepth uint64 `toml:"StoreMinDepth"`
}

type BreakerConfig struct {
	FailureThreshold int `toml:"FailureThreshold"`
	OpenTimeoutSec   int `toml:"OpenTimeoutSec"`
}

type ServerConfig struct {
	MetricsAddr string `toml:"MetricsAddr"`
}

type TracingConfig struct {
	Enabled     bool    `toml:"Enabled"`
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	SampleRatio float64 `toml:"SampleRatio"`
}

type AlertConfig struct {
	SlackWebhookURL string `toml:"SlackWebhookURL"`
	WebhookURL      string `toml:"WebhookURL"`
	CooldownMin     int    `toml:"CooldownMin"`
}

type LogConfig struct {
	Level  string `toml:"Level"`
	Format string `toml:"Format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		RPC: RPCConfig{
			URL:            DefaultRPCURL,
			TimeoutSec:     30,
			RateLimitBurst: 1,
			Network:        "testnet4",
		},
		Calc: CalcConfig{
			Hashrate:            DefaultHashrate,
			TargetDays:          DefaultTargetDays,
			HashesPerDifficulty: DefaultHashesPerDiff,
			CandidateDepths:     append([]uint64(nil), DefaultCandidateDepths...),
			DefaultForkDepth:    DefaultForkDepth,
			ProgressInterval:    DefaultProgressInterval,
		},
		Output: OutputConfig{
			File: DefaultOutputFile,
		},
		Cache: CacheConfig{
			StoreMinDepth: 100,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			OpenTimeoutSec:   30,
		},
		Tracing: TracingConfig{
			Insecure:    true,
			SampleRatio: 1,
		},
		Alert: AlertConfig{
			CooldownMin: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. configFile is an optional TOML file; when
// empty, CONFIG_FILE is consulted. dotenvFile is read if it exists.
// Values that fail to parse are errors; range checks are left to Validate
// so that later layers such as CLI flags can still override them.
func Load(configFile, dotenvFile string) (*Config, error) {
	cfg := Defaults()

	dotenv, err := readDotenv(dotenvFile)
	if err != nil {
		return nil, err
	}
	env := &envReader{dotenv: dotenv}

	if configFile == "" {
		configFile = env.get("CONFIG_FILE", "")
	}
	if configFile != "" {
		if _, err := toml.DecodeFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", configFile, err)
		}
	}

	cfg.RPC.URL = env.get("RPC_URL", cfg.RPC.URL)
	cfg.RPC.User = env.get("RPC_USER", cfg.RPC.User)
	cfg.RPC.Password = env.get("RPC_PASSWORD", cfg.RPC.Password)
	cfg.RPC.Port = env.getInt("RPC_PORT", cfg.RPC.Port)
	cfg.RPC.TimeoutSec = env.getInt("RPC_TIMEOUT_SEC", cfg.RPC.TimeoutSec)
	cfg.RPC.RateLimitRPS = env.getFloat("RPC_RATE_LIMIT_RPS", cfg.RPC.RateLimitRPS)
	cfg.RPC.RateLimitBurst = env.getInt("RPC_RATE_LIMIT_BURST", cfg.RPC.RateLimitBurst)
	cfg.RPC.Network = env.get("NETWORK", cfg.RPC.Network)

	cfg.Calc.Hashrate = env.getFloat("DEFAULT_HASHRATE", cfg.Calc.Hashrate)
	cfg.Calc.TargetDays = env.getFloat("TARGET_DAYS", cfg.Calc.TargetDays)
	cfg.Calc.HashesPerDifficulty = env.getFloat("HASHES_PER_DIFFICULTY", cfg.Calc.HashesPerDifficulty)
	cfg.Calc.CandidateDepths = env.getUintList("SEARCH_CANDIDATE_DEPTHS", cfg.Calc.CandidateDepths)
	cfg.Calc.DefaultForkDepth = env.getUint("DEFAULT_FORK_DEPTH", cfg.Calc.DefaultForkDepth)
	cfg.Calc.ProgressInterval = env.getUint("PROGRESS_INTERVAL", cfg.Calc.ProgressInterval)

	cfg.Output.File = env.get("OUTPUT_FILE", cfg.Output.File)

	cfg.Cache.Size = env.getInt("HEADER_CACHE_SIZE", cfg.Cache.Size)
	cfg.Cache.TTLSec = env.getInt("HEADER_CACHE_TTL_SEC", cfg.Cache.TTLSec)
	cfg.Cache.StoreDir = env.get("HEADER_STORE_DIR", cfg.Cache.StoreDir)
	cfg.Cache.StoreMinDepth = env.getUint("HEADER_STORE_MIN_DEPTH", cfg.Cache.StoreMinDepth)

	cfg.Breaker.FailureThreshold = env.getInt("BREAKER_FAILURE_THRESHOLD", cfg.Breaker.FailureThreshold)
	cfg.Breaker.OpenTimeoutSec = env.getInt("BREAKER_OPEN_TIMEOUT_SEC", cfg.Breaker.OpenTimeoutSec)

	cfg.Server.MetricsAddr = env.get("METRICS_ADDR", cfg.Server.MetricsAddr)

	cfg.Tracing.Enabled = env.getBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Endpoint = env.get("TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.Insecure = env.getBool("TRACING_INSECURE", cfg.Tracing.Insecure)
	cfg.Tracing.SampleRatio = env.getFloat("TRACING_SAMPLE_RATIO", cfg.Tracing.SampleRatio)

	cfg.Alert.SlackWebhookURL = env.get("ALERT_SLACK_WEBHOOK_URL", cfg.Alert.SlackWebhookURL)
	cfg.Alert.WebhookURL = env.get("ALERT_WEBHOOK_URL", cfg.Alert.WebhookURL)
	cfg.Alert.CooldownMin = env.getInt("ALERT_COOLDOWN_MIN", cfg.Alert.CooldownMin)

	cfg.Log.Level = env.get("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = env.get("LOG_FORMAT", cfg.Log.Format)

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration after all layers have been applied.
func (c *Config) Validate() error {
	if c.RPC.URL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if _, err := c.RPC.Endpoint(); err != nil {
		return err
	}
	if c.RPC.Port < 0 || c.RPC.Port > 65535 {
		return fmt.Errorf("RPC_PORT %d out of range", c.RPC.Port)
	}
	if !positiveFinite(c.Calc.Hashrate) {
		return fmt.Errorf("hashrate must be positive, got %v", c.Calc.Hashrate)
	}
	if !positiveFinite(c.Calc.TargetDays) {
		return fmt.Errorf("target days must be positive, got %v", c.Calc.TargetDays)
	}
	if !positiveFinite(c.Calc.HashesPerDifficulty) {
		return fmt.Errorf("HASHES_PER_DIFFICULTY must be positive, got %v", c.Calc.HashesPerDifficulty)
	}
	if len(c.Calc.CandidateDepths) == 0 {
		return fmt.Errorf("SEARCH_CANDIDATE_DEPTHS must list at least one depth")
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be >= 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("TRACING_ENDPOINT is required when tracing is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATIO must be within [0,1], got %v", c.Tracing.SampleRatio)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// Endpoint returns the RPC URL with Port applied.
func (c RPCConfig) Endpoint() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse RPC_URL %q: %w", c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("RPC_URL %q must be http or https", c.URL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("RPC_URL %q has no host", c.URL)
	}
	if c.Port > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(c.Port))
	}
	return u.String(), nil
}

func (c RPCConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

func (c BreakerConfig) OpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeoutSec) * time.Second
}

func (c AlertConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMin) * time.Minute
}

func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

// envReader looks keys up in the process environment, then in .env values.
// Malformed values are collected instead of silently replaced.
type envReader struct {
	dotenv map[string]string
	errs   []error
}

func (r *envReader) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return r.dotenv[key]
}

func (r *envReader) get(key, fallback string) string {
	if v := r.lookup(key); v != "" {
		return v
	}
	return fallback
}

func (r *envReader) getInt(key string, fallback int) int {
	v := r.lookup(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return i
}

func (r *envReader) getUint(key string, fallback uint64) uint64 {
	v := r.lookup(key)
	if v == "" {
		return fallback
	}
	u, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid unsigned integer %q", key, v))
		return fallback
	}
	return u
}

func (r *envReader) getFloat(key string, fallback float64) float64 {
	v := r.lookup(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return fallback
	}
	return f
}

func (r *envReader) getBool(key string, fallback bool) bool {
	v := r.lookup(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return fallback
	}
	return b
}

func (r *envReader) getUintList(key string, fallback []uint64) []uint64 {
	v := r.lookup(key)
	if v == "" {
		return fallback
	}
	list, err := ParseDepths(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return list
}

// ParseDepths parses a comma separated list of block depths.
func ParseDepths(s string) ([]uint64, error) {
	var depths []uint64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid depth %q", part)
		}
		depths = append(depths, d)
	}
	if len(depths) == 0 {
		return nil, fmt.Errorf("no depths in %q", s)
	}
	return depths, nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
