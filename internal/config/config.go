// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/jfandino/boe-harvester/internal/boe"
)

// validFormats are the document variants the gazette publishes per item.
var validFormats = map[string]struct{}{
	"pdf":  {},
	"html": {},
	"xml":  {},
}

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// EndpointsConfig names the remote API surfaces.
type EndpointsConfig struct {
	IndexBaseURL string `mapstructure:"index_base_url"`
	UserAgent    string `mapstructure:"user_agent"`
}

// HarvestConfig governs the day loop and the document pass.
type HarvestConfig struct {
	StartDate   int      `mapstructure:"start_date"`
	EndDate     int      `mapstructure:"end_date"`
	Formats     []string `mapstructure:"formats"`
	Concurrency int      `mapstructure:"concurrency"`
	IndexOnly   bool     `mapstructure:"index_only"`
}

// HTTPConfig configures the retrying fetch client.
type HTTPConfig struct {
	CooldownSeconds   float64 `mapstructure:"cooldown_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RetryDelaySeconds float64 `mapstructure:"retry_delay_seconds"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
}

// StorageConfig sets the on-disk layout.
type StorageConfig struct {
	OutputDir          string `mapstructure:"output_dir"`
	CSVFilename        string `mapstructure:"csv_filename"`
	CheckpointFilename string `mapstructure:"checkpoint_filename"`
	DocumentsDirname   string `mapstructure:"documents_dirname"`
}

// MetricsConfig controls the optional observability listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from defaults, an optional config file, and the
// environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// A shared cooldown would serialize a parallel pool, so it only
	// applies to sequential runs.
	if cfg.Harvest.Concurrency > 1 {
		cfg.HTTP.CooldownSeconds = 0
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoints.index_base_url", "https://www.boe.es/datosabiertos/api/boe/sumario/")
	v.SetDefault("endpoints.user_agent", "boe-harvester/1.0")
	v.SetDefault("harvest.formats", []string{"xml"})
	v.SetDefault("harvest.concurrency", 1)
	v.SetDefault("harvest.index_only", false)
	v.SetDefault("http.cooldown_seconds", 1.0)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.retry_delay_seconds", 5.0)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("storage.output_dir", "data")
	v.SetDefault("storage.csv_filename", "boe_data.csv")
	v.SetDefault("storage.checkpoint_filename", "resume.json")
	v.SetDefault("storage.documents_dirname", "documents")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values. Failures here are fatal at startup;
// every problem is reported, not just the first.
func (c Config) Validate() error {
	var errs *multierror.Error

	if c.Endpoints.IndexBaseURL == "" {
		errs = multierror.Append(errs, fmt.Errorf("endpoints.index_base_url must be set"))
	}
	if len(c.Harvest.Formats) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("harvest.formats must include at least one format"))
	}
	for _, f := range c.Harvest.Formats {
		if _, ok := validFormats[f]; !ok {
			errs = multierror.Append(errs, fmt.Errorf("harvest.formats: %q is not one of pdf, html, xml", f))
		}
	}
	if c.Harvest.Concurrency <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("harvest.concurrency must be > 0"))
	}
	for _, d := range []struct {
		name  string
		value int
	}{
		{"harvest.start_date", c.Harvest.StartDate},
		{"harvest.end_date", c.Harvest.EndDate},
	} {
		if d.value == 0 {
			continue
		}
		if _, err := boe.ParseDateLiteral(d.value); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %d is not a valid YYYYMMDD literal", d.name, d.value))
		}
	}
	if c.HTTP.MaxRetries < 0 {
		errs = multierror.Append(errs, fmt.Errorf("http.max_retries must be >= 0"))
	}
	if c.HTTP.CooldownSeconds < 0 {
		errs = multierror.Append(errs, fmt.Errorf("http.cooldown_seconds must be >= 0"))
	}
	if c.HTTP.RetryDelaySeconds < 0 {
		errs = multierror.Append(errs, fmt.Errorf("http.retry_delay_seconds must be >= 0"))
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("http.timeout_seconds must be > 0"))
	}
	if c.Storage.OutputDir == "" {
		errs = multierror.Append(errs, fmt.Errorf("storage.output_dir must be set"))
	}

	return errs.ErrorOrNil()
}

// Cooldown returns the pre-request cooldown as a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.HTTP.CooldownSeconds * float64(time.Second))
}

// RetryDelay returns the inter-attempt delay as a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.HTTP.RetryDelaySeconds * float64(time.Second))
}

// Timeout returns the per-attempt timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// CSVPath is the location of the tabular store file.
func (c Config) CSVPath() string {
	return filepath.Join(c.Storage.OutputDir, c.Storage.CSVFilename)
}

// CheckpointPath is the location of the resume state file.
func (c Config) CheckpointPath() string {
	return filepath.Join(c.Storage.OutputDir, c.Storage.CheckpointFilename)
}

// DocumentsDir is the root of the document file tree.
func (c Config) DocumentsDir() string {
	return filepath.Join(c.Storage.OutputDir, c.Storage.DocumentsDirname)
}
