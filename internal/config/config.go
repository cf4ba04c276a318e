// Package config loads runtime settings from defaults, an optional config file,
// the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/ingest"
	"github.com/IshaanKalra2103/newsscraper/internal/store"
	"github.com/IshaanKalra2103/newsscraper/pkg/classifier"
	"github.com/IshaanKalra2103/newsscraper/pkg/fetch"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NEWSSCRAPER_STORE_DRIVER.
const EnvPrefix = "NEWSSCRAPER"

type Config struct {
	Log            LogConfig      `mapstructure:"log"`
	HTTP           HTTPConfig     `mapstructure:"http"`
	Scrape         ScrapeConfig   `mapstructure:"scrape"`
	Stealth        StealthConfig  `mapstructure:"stealth"`
	Keywords       KeywordsConfig `mapstructure:"keywords"`
	Store          StoreConfig    `mapstructure:"store"`
	PublishersFile string         `mapstructure:"publishers_file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ScrapeConfig struct {
	RequestTimeoutSeconds    int           `mapstructure:"request_timeout_seconds"`
	MaxArticlesPerScrape     int           `mapstructure:"max_articles_per_scrape"`
	DefaultArticlesPerSource int           `mapstructure:"default_articles_per_source"`
	UserAgent                string        `mapstructure:"user_agent"`
	ArticleWorkers           int           `mapstructure:"article_workers"`
	RequestDelay             time.Duration `mapstructure:"request_delay"`
	SourceConcurrency        int           `mapstructure:"source_concurrency"`
	SourceTimeout            time.Duration `mapstructure:"source_timeout"`
}

type StealthConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ExecPath    string        `mapstructure:"exec_path"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type KeywordsConfig struct {
	Energy    []string `mapstructure:"energy"`
	Financial []string `mapstructure:"financial"`
	AI        []string `mapstructure:"ai"`
}

type StoreConfig struct {
	Driver       string        `mapstructure:"driver"`
	Path         string        `mapstructure:"path"`
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
	Migrate      bool          `mapstructure:"migrate"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"log-level":          "log.level",
	"log-format":         "log.format",
	"addr":               "http.addr",
	"store-driver":       "store.driver",
	"store-path":         "store.path",
	"store-dsn":          "store.dsn",
	"publishers":         "publishers_file",
	"source-concurrency": "scrape.source_concurrency",
}

// Load reads path (optional) and the environment, then applies any flags that
// were set on flags. A .env file in the working directory is loaded when present.
// The --no-stealth flag disables the browser fallback.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
		if f := flags.Lookup("no-stealth"); f != nil && f.Changed {
			v.Set("stealth.enabled", false)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	vocab := classifier.DefaultVocabulary()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Minute)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("scrape.request_timeout_seconds", 30)
	v.SetDefault("scrape.max_articles_per_scrape", ingest.DefaultMaxArticles)
	v.SetDefault("scrape.default_articles_per_source", ingest.DefaultArticlesPerSource)
	v.SetDefault("scrape.user_agent", fetch.DefaultUserAgent)
	v.SetDefault("scrape.article_workers", 4)
	v.SetDefault("scrape.request_delay", time.Duration(0))
	v.SetDefault("scrape.source_concurrency", 1)
	v.SetDefault("scrape.source_timeout", time.Duration(0))

	v.SetDefault("stealth.enabled", true)
	v.SetDefault("stealth.exec_path", "")
	v.SetDefault("stealth.settle_delay", 3*time.Second)
	v.SetDefault("stealth.timeout", 60*time.Second)

	v.SetDefault("keywords.energy", vocab.Energy)
	v.SetDefault("keywords.financial", vocab.Financial)
	v.SetDefault("keywords.ai", vocab.AI)

	v.SetDefault("store.driver", store.DriverBolt)
	v.SetDefault("store.path", "newsscraper.db")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.max_open_conns", 10)
	v.SetDefault("store.max_idle_conns", 5)
	v.SetDefault("store.max_lifetime", 5*time.Minute)
	v.SetDefault("store.migrate", true)

	v.SetDefault("publishers_file", "")
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	c.PublishersFile = strings.TrimSpace(c.PublishersFile)
	c.Keywords.Energy = cleanList(c.Keywords.Energy)
	c.Keywords.Financial = cleanList(c.Keywords.Financial)
	c.Keywords.AI = cleanList(c.Keywords.AI)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Format {
	case "json", "console", "pretty":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}

	if c.Scrape.RequestTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("scrape.request_timeout_seconds must be positive"))
	}
	if c.Scrape.MaxArticlesPerScrape <= 0 {
		errs = append(errs, errors.New("scrape.max_articles_per_scrape must be positive"))
	}
	if c.Scrape.DefaultArticlesPerSource <= 0 {
		errs = append(errs, errors.New("scrape.default_articles_per_source must be positive"))
	}
	if c.Scrape.ArticleWorkers <= 0 {
		errs = append(errs, errors.New("scrape.article_workers must be positive"))
	}
	if c.Scrape.SourceConcurrency <= 0 {
		errs = append(errs, errors.New("scrape.source_concurrency must be positive"))
	}
	if c.Scrape.RequestDelay < 0 || c.Scrape.SourceTimeout < 0 {
		errs = append(errs, errors.New("scrape durations must not be negative"))
	}

	switch c.Store.Driver {
	case store.DriverBolt:
		if strings.TrimSpace(c.Store.Path) == "" {
			errs = append(errs, errors.New("store.path is required for the bolt driver"))
		}
	case store.DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if len(c.Keywords.Energy) == 0 || len(c.Keywords.Financial) == 0 || len(c.Keywords.AI) == 0 {
		errs = append(errs, errors.New("keywords.energy, keywords.financial and keywords.ai must not be empty"))
	}

	return errors.Join(errs...)
}

// RequestTimeout is the plain HTTP timeout per request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Scrape.RequestTimeoutSeconds) * time.Second
}

// scrapeWriteMargin is kept free at the end of a scrape request to write the report.
const scrapeWriteMargin = 15 * time.Second

// ScrapeTimeout bounds a scrape request so the report is written before the
// server write deadline. Zero means no bound.
func (c *Config) ScrapeTimeout() time.Duration {
	wt := c.HTTP.WriteTimeout
	if wt <= 0 {
		return 0
	}
	if wt <= 2*scrapeWriteMargin {
		return wt * 9 / 10
	}
	return wt - scrapeWriteMargin
}

func (c *Config) Vocabulary() classifier.Vocabulary {
	return classifier.Vocabulary{
		Energy:    c.Keywords.Energy,
		Financial: c.Keywords.Financial,
		AI:        c.Keywords.AI,
	}
}

func (c *Config) BrowserOptions() fetch.BrowserOptions {
	return fetch.BrowserOptions{
		ExecPath:    c.Stealth.ExecPath,
		UserAgent:   c.Scrape.UserAgent,
		SettleDelay: c.Stealth.SettleDelay,
		Timeout:     c.Stealth.Timeout,
	}
}

func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Driver:       c.Store.Driver,
		Path:         c.Store.Path,
		DSN:          c.Store.DSN,
		MaxOpenConns: c.Store.MaxOpenConns,
		MaxIdleConns: c.Store.MaxIdleConns,
		MaxLifetime:  c.Store.MaxLifetime,
		Migrate:      c.Store.Migrate,
	}
}

func (c *Config) IngestConfig() ingest.Config {
	return ingest.Config{
		DefaultArticlesPerSource: c.Scrape.DefaultArticlesPerSource,
		MaxArticlesPerScrape:     c.Scrape.MaxArticlesPerScrape,
		SourceConcurrency:        c.Scrape.SourceConcurrency,
		SourceTimeout:            c.Scrape.SourceTimeout,
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
