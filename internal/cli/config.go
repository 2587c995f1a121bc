package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fabrylab/clickpoints/internal/imageio"
	"github.com/fabrylab/clickpoints/internal/paths"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "CLICKPOINTS"

	cfgKeyDatabase  = "database"
	cfgKeyLogLevel  = "log.level"
	cfgKeyLogFormat = "log.format"
	cfgKeyLogFile   = "log.file"
	cfgKeyMirrorDSN = "mirror.dsn"
	cfgKeyCacheTTL  = "images.cache_ttl"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	Database string       `yaml:"database"`
	Log      logConfig    `yaml:"log"`
	Mirror   mirrorConfig `yaml:"mirror"`
	Images   imagesConfig `yaml:"images"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type mirrorConfig struct {
	DSN string `yaml:"dsn"`
}

type imagesConfig struct {
	CacheTTL string `yaml:"cache_ttl"`
}

func defaultConfig() configFile {
	return configFile{
		Log:    logConfig{Level: "info", Format: "text"},
		Images: imagesConfig{CacheTTL: imageio.DefaultTTL.String()},
	}
}

// loadConfig reads config.yaml from configDir. A missing file is not an
// error. CLICKPOINTS_* environment variables override file values, e.g.
// CLICKPOINTS_MIRROR_DSN for mirror.dsn.
func loadConfig(configDir string) (*viper.Viper, error) {
	def := defaultConfig()
	v := viper.New()
	v.SetDefault(cfgKeyDatabase, def.Database)
	v.SetDefault(cfgKeyLogLevel, def.Log.Level)
	v.SetDefault(cfgKeyLogFormat, def.Log.Format)
	v.SetDefault(cfgKeyLogFile, def.Log.File)
	v.SetDefault(cfgKeyMirrorDSN, def.Mirror.DSN)
	v.SetDefault(cfgKeyCacheTTL, def.Images.CacheTTL)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml with cfg if the file does not
// exist. It reports whether a file was written.
func writeConfigIfMissing(path string, cfg configFile) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# clickpoints configuration\n")
	return true, os.WriteFile(path, append(header, data...), 0o644)
}

func (a *app) configPath() string {
	return filepath.Join(a.configDir, paths.ConfigFileName)
}

// cacheTTL parses images.cache_ttl. "never" disables expiry.
func (a *app) cacheTTL() (time.Duration, error) {
	s := strings.TrimSpace(a.cfg.GetString(cfgKeyCacheTTL))
	switch s {
	case "":
		return 0, nil
	case "never":
		return -1, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errUsage, cfgKeyCacheTTL, err)
	}
	return d, nil
}
