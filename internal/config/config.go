package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvDataFile  = "NEBULA_DATA_FILE"
	EnvLogLevel  = "NEBULA_LOG_LEVEL"
	EnvSteamRoot = "NEBULA_STEAM_ROOT"

	DefaultEnvFileName  = ".env"
	defaultDataDirName  = "nebula"
	defaultDataFileName = "nebula_v3.json"
	defaultAppsDir      = "steamapps"
	defaultManifestExt  = ".acf"
	defaultWorkers      = 4
	defaultSteamURI     = "steam://run/%s"
)

type SteamConfig struct {
	Root           string `yaml:"root"`
	AppsDir        string `yaml:"apps_dir"`
	ManifestExt    string `yaml:"manifest_ext"`
	LibraryFolders *bool  `yaml:"library_folders"`
	Workers        int    `yaml:"workers"`
}

// ScanLibraryFolders reports whether additional Steam libraries are scanned.
func (c *SteamConfig) ScanLibraryFolders() bool {
	return c.LibraryFolders == nil || *c.LibraryFolders
}

type LaunchConfig struct {
	SteamURI string `yaml:"steam_uri"`
}

type Config struct {
	DataFile     string       `yaml:"data_file"`
	LogLevel     string       `yaml:"log_level"`
	SteamConfig  SteamConfig  `yaml:"steam"`
	LaunchConfig LaunchConfig `yaml:"launch"`
}

func (c *Config) SetDefaults() {
	if c.DataFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}

		c.DataFile = filepath.Join(dir, defaultDataDirName, defaultDataFileName)
	}

	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}

	if c.SteamConfig.AppsDir == "" {
		c.SteamConfig.AppsDir = defaultAppsDir
	}

	if c.SteamConfig.ManifestExt == "" {
		c.SteamConfig.ManifestExt = defaultManifestExt
	}

	if !strings.HasPrefix(c.SteamConfig.ManifestExt, ".") {
		c.SteamConfig.ManifestExt = "." + c.SteamConfig.ManifestExt
	}

	if c.SteamConfig.Workers < 1 {
		c.SteamConfig.Workers = defaultWorkers
	}

	if c.LaunchConfig.SteamURI == "" {
		c.LaunchConfig.SteamURI = defaultSteamURI
	}
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}

	if !strings.Contains(c.LaunchConfig.SteamURI, "%s") {
		return fmt.Errorf("steam uri must contain %%s placeholder: %q", c.LaunchConfig.SteamURI)
	}

	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDataFile); ok && v != "" {
		c.DataFile = v
	}

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}

	if v, ok := lookup(EnvSteamRoot); ok && v != "" {
		c.SteamConfig.Root = v
	}
}

func Load(cfgPath string) (*Config, error) {
	return LoadFS(afero.NewOsFs(), cfgPath, DefaultEnvFileName)
}

// LoadFS reads the yaml file at cfgPath and the dotenv file at envPath from fs.
// Either file may be missing. Process environment wins over the dotenv file,
// which wins over the yaml file.
func LoadFS(fs afero.Fs, cfgPath, envPath string) (*Config, error) {
	cfg := &Config{}

	if cfgPath != "" {
		data, err := afero.ReadFile(fs, cfgPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("cannot parse config %s: %w", cfgPath, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("cannot read config %s: %w", cfgPath, err)
		}
	}

	dotenv, err := readDotenv(fs, envPath)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}

		v, ok := dotenv[key]

		return v, ok
	})

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func readDotenv(fs afero.Fs, envPath string) (map[string]string, error) {
	if envPath == "" {
		return nil, nil
	}

	f, err := fs.Open(envPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("cannot open env file %s: %w", envPath, err)
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("cannot parse env file %s: %w", envPath, err)
	}

	return env, nil
}
