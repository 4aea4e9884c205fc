package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultOPDSURL is the Standard Ebooks full acquisition feed.
	DefaultOPDSURL = "https://standardebooks.org/feeds/opds/all"

	// EnvPrefix makes every flag settable as SEBSYNC_<FLAG>.
	EnvPrefix = "sebsync"
)

// Config carries everything the sync components need. It is built once in
// the CLI layer and passed explicitly into each constructor.
type Config struct {
	Email        string `mapstructure:"email"`
	OPDSURL      string `mapstructure:"opds"`
	BooksDir     string `mapstructure:"books"`
	DownloadsDir string `mapstructure:"downloads"`

	DryRun  bool `mapstructure:"dry-run"`
	Quiet   bool `mapstructure:"quiet"`
	Verbose bool `mapstructure:"verbose"`

	Concurrency int   `mapstructure:"concurrency"`
	DelayMS     int   `mapstructure:"delay-ms"`
	MaxSizeMB   int64 `mapstructure:"max-size-mb"`
}

// Load resolves configuration from the bound flags and SEBSYNC_* environment
// variables carried by v, after loading a .env file when one is present.
func Load(v *viper.Viper) (*Config, error) {
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.BooksDir == "" {
		cfg.BooksDir = defaultDir("Books")
	}
	if cfg.DownloadsDir == "" {
		cfg.DownloadsDir = defaultDir("Downloads")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Email == "" {
		return fmt.Errorf("email is required to authenticate with the catalog")
	}

	if c.OPDSURL == "" {
		return fmt.Errorf("opds catalog URL cannot be empty")
	}

	for name, dir := range map[string]string{"books": c.BooksDir, "downloads": c.DownloadsDir} {
		if dir == "" {
			return fmt.Errorf("%s directory is required", name)
		}
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("%s directory %q is not accessible: %w", name, dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s path %q is not a directory", name, dir)
		}
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	if c.DelayMS < 0 {
		return fmt.Errorf("delay-ms cannot be negative")
	}

	if c.MaxSizeMB < 1 {
		return fmt.Errorf("max-size-mb must be at least 1")
	}

	return nil
}

// MaxSizeBytes is the per-download size cap.
func (c *Config) MaxSizeBytes() int64 { return c.MaxSizeMB * 1024 * 1024 }

// defaultDir returns $HOME/<name> if it exists, otherwise empty so
// validation reports the missing directory.
func defaultDir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, name)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}
