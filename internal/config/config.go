package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dmorgan81/getimg/image"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfig       = "GETIMG_CONFIG"
	EnvAPIKey       = "GETIMG_API_KEY"
	EnvAPIKeyParam  = "GETIMG_API_KEY_PARAM"
	EnvModel        = "GETIMG_MODEL"
	EnvBaseURL      = "GETIMG_BASE_URL"
	EnvTimeout      = "GETIMG_TIMEOUT"
	EnvDistribution = "GETIMG_DISTRIBUTION"
)

type Config struct {
	APIKey string `yaml:"api_key"`
	// APIKeyParam names an SSM parameter holding the API key. Used only when APIKey is empty.
	APIKeyParam string `yaml:"api_key_param"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	// Timeout bounds each API call. Zero means no deadline.
	Timeout time.Duration `yaml:"timeout"`
	// Distribution is a CloudFront distribution invalidated after uploads to S3.
	Distribution string `yaml:"distribution"`
}

func Default() Config {
	return Config{
		Model:   image.DefaultModel,
		BaseURL: image.DefaultBaseURL,
	}
}

// Load applies defaults, then the YAML file at path (if any), then the environment.
// An empty path falls back to GETIMG_CONFIG; a missing file named by neither is not an error.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = getenv(EnvConfig)
		explicit = path != ""
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				return cfg, nil
			}
			return Config{}, err
		}
	}

	if err := cfg.loadEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv(getenv func(string) string) error {
	for env, dst := range map[string]*string{
		EnvAPIKey:       &c.APIKey,
		EnvAPIKeyParam:  &c.APIKeyParam,
		EnvModel:        &c.Model,
		EnvBaseURL:      &c.BaseURL,
		EnvDistribution: &c.Distribution,
	} {
		if v := getenv(env); v != "" {
			*dst = v
		}
	}

	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// Override applies explicit values on top of the loaded configuration. Empty values are ignored.
func (c Config) Override(o Config) Config {
	for dst, src := range map[*string]string{
		&c.APIKey:       o.APIKey,
		&c.APIKeyParam:  o.APIKeyParam,
		&c.Model:        o.Model,
		&c.BaseURL:      o.BaseURL,
		&c.Distribution: o.Distribution,
	} {
		if src != "" {
			*dst = src
		}
	}
	if o.Timeout != 0 {
		c.Timeout = o.Timeout
	}
	return c
}

func (c Config) Credentials() image.Credentials {
	return image.Credentials{APIKey: c.APIKey, Model: c.Model}
}
