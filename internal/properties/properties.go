package properties

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config is the process environment of a run.
type Config struct {
	RootPath string `env:"ROOT_PATH,default=."`

	// Comma separated, the n-th secret belongs to the n-th id.
	CopernicusClientIDs     string        `env:"COPERNICUS_CLIENT_ID"`
	CopernicusClientSecrets string        `env:"COPERNICUS_CLIENT_SECRET"`
	CopernicusTokenURL      string        `env:"COPERNICUS_TOKEN_URL,default=https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"`
	SentinelHubURL          string        `env:"SENTINEL_HUB_URL,default=https://sh.dataspace.copernicus.eu"`
	SentinelRetries         int           `env:"SENTINEL_RETRIES,default=3"`
	SentinelRetryWait       time.Duration `env:"SENTINEL_RETRY_WAIT,default=5s"`
	FetchConcurrency        int           `env:"FETCH_CONCURRENCY,default=4"`

	// When set, imagery is read from this CSV snapshot instead of Sentinel Hub.
	ImagerySnapshot string `env:"IMAGERY_SNAPSHOT"`

	DiscordErrorNotificationURL   string `env:"DISCORD_ERROR_NOTIFICATION_URL"`
	DiscordSuccessNotificationURL string `env:"DISCORD_SUCCESS_NOTIFICATION_URL"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// ResultsPath resolves a file under the results directory of RootPath.
func (c *Config) ResultsPath(name string) string {
	return filepath.Join(c.RootPath, "results", name)
}

// Load reads .env (or ../.env) when present, then the environment.
func Load(ctx context.Context) (*Config, error) {
	if err := loadDotEnv(".env", "../.env"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if cfg.FetchConcurrency < 1 {
		return nil, fmt.Errorf("FETCH_CONCURRENCY must be positive, got %d", cfg.FetchConcurrency)
	}
	if cfg.SentinelRetries < 0 {
		return nil, fmt.Errorf("SENTINEL_RETRIES must not be negative, got %d", cfg.SentinelRetries)
	}
	return &cfg, nil
}

func loadDotEnv(paths ...string) error {
	for _, path := range paths {
		err := godotenv.Load(path)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}
