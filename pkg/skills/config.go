package skills

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds the skill center settings
type Config struct {
	Skills       DirsConfig   `mapstructure:"skills"`
	Cache        CacheConfig  `mapstructure:"cache"`
	OutputPolicy OutputPolicy `mapstructure:"output_policy"`
}

// DirsConfig selects the definition roots
type DirsConfig struct {
	Builtin       bool     `mapstructure:"builtin"`
	CommunityDirs []string `mapstructure:"community_dirs"`
	CustomDirs    []string `mapstructure:"custom_dirs"`
	InstallDir    string   `mapstructure:"install_dir"`
	Allowed       []string `mapstructure:"allowed"`
}

// CacheConfig bounds the result cache
type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// GetConfigFromViper reads the skill center settings from the global viper
// instance, filling in the default roots when none are configured
func GetConfigFromViper() (Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal skills configuration")
	}

	if !viper.IsSet("skills.builtin") {
		config.Skills.Builtin = true
	}
	if config.Cache.Size <= 0 {
		config.Cache.Size = DefaultCacheSize
	}
	if config.Cache.TTL <= 0 {
		config.Cache.TTL = DefaultCacheTTL
	}
	if config.OutputPolicy == "" {
		config.OutputPolicy = OutputPolicyStrict
	}

	if len(config.Skills.CommunityDirs) == 0 && len(config.Skills.CustomDirs) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return config, errors.Wrap(err, "failed to get user home directory")
		}
		config.Skills.CommunityDirs = []string{filepath.Join(home, ".skillet", "community")}
		config.Skills.CustomDirs = []string{
			filepath.Join(home, ".skillet", "skills"),
			filepath.Join(".skillet", "skills"),
		}
	}
	return config, nil
}

// DiscoveryOptions turns the configured roots into discovery options
func (c Config) DiscoveryOptions() ([]Option, error) {
	var opts []Option
	if c.Skills.Builtin {
		builtin, err := BuiltinFS()
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBuiltin(builtin))
	}
	opts = append(opts,
		WithCommunityDirs(c.Skills.CommunityDirs...),
		WithCustomDirs(c.Skills.CustomDirs...),
	)
	return opts, nil
}

// NewRegistryFromConfig builds a registry with discovery, cache, allowlist
// and output policy taken from config. Extra options such as the executor
// and recorder are applied after.
func NewRegistryFromConfig(config Config, extra ...RegistryOption) (*Registry, error) {
	discoveryOpts, err := config.DiscoveryOptions()
	if err != nil {
		return nil, err
	}
	discovery, err := NewDiscovery(discoveryOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create skill discovery")
	}

	opts := []RegistryOption{
		WithDiscovery(discovery),
		WithCacheSize(config.Cache.Size),
		WithCacheTTL(config.Cache.TTL),
		WithOutputPolicy(config.OutputPolicy),
		WithAllowlist(config.Skills.Allowed...),
	}
	if config.Skills.InstallDir != "" {
		opts = append(opts, WithInstallDir(config.Skills.InstallDir))
	}
	return NewRegistry(append(opts, extra...)...)
}
