package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	MX      MXConfig      `yaml:"mx" mapstructure:"mx"`
	Rank    RankConfig    `yaml:"rank" mapstructure:"rank"`
	Scorer  ScorerConfig  `yaml:"scorer" mapstructure:"scorer"`
	Runner  RunnerConfig  `yaml:"runner" mapstructure:"runner"`
	Profile ProfileConfig `yaml:"profile" mapstructure:"profile"`
	Clean   CleanConfig   `yaml:"clean" mapstructure:"clean"`
}

// StoreConfig configures the run ledger backend. Driver is one of
// sqlite, postgres or none.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures site resolution and page fetching.
type FetchConfig struct {
	CandidatePaths   []string `yaml:"candidate_paths" mapstructure:"candidate_paths"`
	ExcludePaths     []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	PageConcurrency  int      `yaml:"page_concurrency" mapstructure:"page_concurrency"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes     int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxAttempts      int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	HostRPS          float64  `yaml:"host_rps" mapstructure:"host_rps"`
	HostBurst        int      `yaml:"host_burst" mapstructure:"host_burst"`
	BreakerThreshold int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int      `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	UserAgent        string   `yaml:"user_agent" mapstructure:"user_agent"`
}

// ExtractConfig configures contact extraction.
type ExtractConfig struct {
	Region string `yaml:"region" mapstructure:"region"`
}

// MXConfig configures the MX presence check.
type MXConfig struct {
	Servers       []string `yaml:"servers" mapstructure:"servers"`
	TimeoutMs     int      `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	CacheTTLHours int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// RankConfig configures contact ranking.
type RankConfig struct {
	MaxEmailsPerDomain int `yaml:"max_emails_per_domain" mapstructure:"max_emails_per_domain"`
	NamedConfidence    int `yaml:"named_confidence" mapstructure:"named_confidence"`
	RoleConfidence     int `yaml:"role_confidence" mapstructure:"role_confidence"`
}

// ScorerConfig holds the additive lead-score weights and tier thresholds.
type ScorerConfig struct {
	ProductFitWeight        int `yaml:"product_fit_weight" mapstructure:"product_fit_weight"`
	NamedEmailWeight        int `yaml:"named_email_weight" mapstructure:"named_email_weight"`
	RoleEmailWeight         int `yaml:"role_email_weight" mapstructure:"role_email_weight"`
	PhoneOnlyWeight         int `yaml:"phone_only_weight" mapstructure:"phone_only_weight"`
	VerificationGoodWeight  int `yaml:"verification_good_weight" mapstructure:"verification_good_weight"`
	VerificationOKWeight    int `yaml:"verification_ok_weight" mapstructure:"verification_ok_weight"`
	VerificationBadWeight   int `yaml:"verification_bad_weight" mapstructure:"verification_bad_weight"`
	SocialWeight            int `yaml:"social_weight" mapstructure:"social_weight"`
	ProducerPlantWeight     int `yaml:"producer_plant_weight" mapstructure:"producer_plant_weight"`
	ProfileConfidenceWeight int `yaml:"profile_confidence_weight" mapstructure:"profile_confidence_weight"`
	ProfileConfidenceMin    int `yaml:"profile_confidence_min" mapstructure:"profile_confidence_min"`
	MaxScore                int `yaml:"max_score" mapstructure:"max_score"`
	TierAMin                int `yaml:"tier_a_min" mapstructure:"tier_a_min"`
	TierBMin                int `yaml:"tier_b_min" mapstructure:"tier_b_min"`
}

// RunnerConfig configures batch runs. CLI flags override these per invocation.
type RunnerConfig struct {
	ChunkSize       int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	SiteConcurrency int     `yaml:"site_concurrency" mapstructure:"site_concurrency"`
	SleepMin        float64 `yaml:"sleep_min" mapstructure:"sleep_min"`
	SleepMax        float64 `yaml:"sleep_max" mapstructure:"sleep_max"`
	ProgressEvery   int     `yaml:"progress_every" mapstructure:"progress_every"`
}

// ProfileConfig configures the site profiler.
type ProfileConfig struct {
	KeyPaths        []string `yaml:"key_paths" mapstructure:"key_paths"`
	SiteConcurrency int      `yaml:"site_concurrency" mapstructure:"site_concurrency"`
}

// CleanConfig configures lead cleaning. BlockedDomains are disposable-mail
// and social domains whose rows are dropped.
type CleanConfig struct {
	MaxContactsPerDomain int      `yaml:"max_contacts_per_domain" mapstructure:"max_contacts_per_domain"`
	BlockedDomains       []string `yaml:"blocked_domains" mapstructure:"blocked_domains"`
}

// DefaultBlockedDomains is the built-in clean.blocked_domains list.
var DefaultBlockedDomains = []string{
	"mailinator.com", "10minutemail.com", "guerrillamail.com", "trashmail.com",
	"tempmail.com", "dispostable.com", "fakeinbox.com", "maildrop.cc",
	"yopmail.com", "mailcatch.com", "spamgourmet.com",
	"facebook.com", "marketplace.facebook.com",
}

// DefaultCandidatePaths are the paths fetched for every site.
var DefaultCandidatePaths = []string{
	"", "contact", "contact-us", "about", "team", "privacy", "impressum", "terms", "sitemap.xml",
}

// DefaultProfilePaths are the pages read by the site profiler.
var DefaultProfilePaths = []string{
	"", "about", "services", "contact", "locations", "plants", "ready-mix",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.candidate_paths", DefaultCandidatePaths)
	v.SetDefault("fetch.exclude_paths", []string{})
	v.SetDefault("fetch.page_concurrency", 4)
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_body_bytes", 2<<20)
	v.SetDefault("fetch.max_attempts", 2)
	v.SetDefault("fetch.host_rps", 4.0)
	v.SetDefault("fetch.host_burst", 4)
	v.SetDefault("fetch.breaker_threshold", 3)
	v.SetDefault("fetch.breaker_reset_secs", 60)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; LeadsBot/1.0)")
	v.SetDefault("extract.region", "US")
	v.SetDefault("mx.servers", []string{})
	v.SetDefault("mx.timeout_ms", 2500)
	v.SetDefault("mx.cache_ttl_hours", 72)
	v.SetDefault("rank.max_emails_per_domain", 3)
	v.SetDefault("rank.named_confidence", 90)
	v.SetDefault("rank.role_confidence", 70)
	v.SetDefault("scorer.product_fit_weight", 4)
	v.SetDefault("scorer.named_email_weight", 3)
	v.SetDefault("scorer.role_email_weight", 2)
	v.SetDefault("scorer.phone_only_weight", 1)
	v.SetDefault("scorer.verification_good_weight", 2)
	v.SetDefault("scorer.verification_ok_weight", 1)
	v.SetDefault("scorer.verification_bad_weight", 0)
	v.SetDefault("scorer.social_weight", 1)
	v.SetDefault("scorer.producer_plant_weight", 1)
	v.SetDefault("scorer.profile_confidence_weight", 1)
	v.SetDefault("scorer.profile_confidence_min", 80)
	v.SetDefault("scorer.max_score", 10)
	v.SetDefault("scorer.tier_a_min", 8)
	v.SetDefault("scorer.tier_b_min", 5)
	v.SetDefault("runner.chunk_size", 100)
	v.SetDefault("runner.site_concurrency", 1)
	v.SetDefault("runner.sleep_min", 0.5)
	v.SetDefault("runner.sleep_max", 1.2)
	v.SetDefault("runner.progress_every", 25)
	v.SetDefault("profile.key_paths", DefaultProfilePaths)
	v.SetDefault("profile.site_concurrency", 4)
	v.SetDefault("clean.max_contacts_per_domain", 2)
	v.SetDefault("clean.blocked_domains", DefaultBlockedDomains)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command depends on. Mode is the command
// name: run, profile, tag, clean, score, export or runs.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run":
		errs = append(errs, c.validateFetch()...)
		errs = append(errs, c.validateRunner()...)
		if c.Rank.MaxEmailsPerDomain < 1 {
			errs = append(errs, "rank.max_emails_per_domain must be >= 1")
		}
		if c.MX.TimeoutMs <= 0 {
			errs = append(errs, "mx.timeout_ms must be > 0")
		}
	case "profile":
		errs = append(errs, c.validateFetch()...)
		if c.Profile.SiteConcurrency < 1 {
			errs = append(errs, "profile.site_concurrency must be >= 1")
		}
	case "runs":
		if c.Store.Driver == "none" {
			errs = append(errs, "store.driver must be sqlite or postgres to inspect runs")
		}
	case "clean":
		if c.Clean.MaxContactsPerDomain < 1 {
			errs = append(errs, "clean.max_contacts_per_domain must be >= 1")
		}
	case "score", "tag", "export":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres, none", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateFetch() []string {
	var errs []string
	if c.Fetch.PageConcurrency < 1 {
		errs = append(errs, "fetch.page_concurrency must be >= 1")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		errs = append(errs, "fetch.timeout_secs must be > 0")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		errs = append(errs, "fetch.max_body_bytes must be > 0")
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, "fetch.max_attempts must be >= 1")
	}
	return errs
}

func (c *Config) validateRunner() []string {
	var errs []string
	if c.Runner.ChunkSize < 1 {
		errs = append(errs, "runner.chunk_size must be >= 1")
	}
	if c.Runner.SiteConcurrency < 1 {
		errs = append(errs, "runner.site_concurrency must be >= 1")
	}
	if c.Runner.SleepMin < 0 || c.Runner.SleepMax < c.Runner.SleepMin {
		errs = append(errs, "runner.sleep_min must be >= 0 and <= runner.sleep_max")
	}
	if c.Runner.ProgressEvery < 0 {
		errs = append(errs, "runner.progress_every must be >= 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
