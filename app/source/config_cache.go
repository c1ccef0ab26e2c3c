package source

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		sourceName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(sourceName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "source", sourceName, "enabled", config.Settings.Enabled, "refresh_interval", config.Settings.RefreshInterval)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(sourceName string) (*Config, error) {
	configFile := cc.getConfigFilePath(sourceName)
	sourceConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	sourceConfig.Name = sourceName
	applyDefaults(sourceConfig)

	if err := cc.validateConfig(sourceConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[sourceConfig.Name] = sourceConfig

	return sourceConfig, nil
}

func (cc *ConfigCache) GetConfig(sourceName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	sourceConfig, ok := cc.cache[sourceName]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", sourceName)
	}
	return sourceConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

// FindByLabel resolves the config whose label tags stored articles.
func (cc *ConfigCache) FindByLabel(label string) *Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	for _, v := range cc.cache {
		if v.Label == label {
			return v
		}
	}
	return nil
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sourceConfig Config
	if err := yaml.Unmarshal(data, &sourceConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &sourceConfig, nil
}

func (cc *ConfigCache) validateConfig(sourceConfig *Config) error {
	if sourceConfig == nil {
		return fmt.Errorf("sourceConfig is nil")
	}

	requiredFields := map[string]string{
		"source name": sourceConfig.Name,
		"source URL":  sourceConfig.URL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	u, err := url.Parse(sourceConfig.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("source URL must be an absolute http(s) URL: %s", sourceConfig.URL)
	}

	nonNegativeFields := map[string]int{
		"refresh interval":     sourceConfig.Settings.RefreshInterval,
		"target count":         sourceConfig.Settings.TargetCount,
		"timeout":              sourceConfig.Settings.Timeout,
		"article max length":   sourceConfig.Article.MaxLength,
		"reference max length": sourceConfig.References.MaxLength,
		"max results":          sourceConfig.References.MaxResults,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, pattern := range sourceConfig.Listing.PagePatterns {
		if !strings.Contains(pattern, "{n}") {
			return fmt.Errorf("page pattern at index %d must contain {n}: %s", i, pattern)
		}
	}

	validFields := map[string]bool{
		"title":   true,
		"url":     true,
		"snippet": true,
		"any":     true,
	}

	for i, filter := range sourceConfig.References.Filters {
		if !validFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(sourceName string) string {
	return filepath.Join(cc.sourcesDir, sourceName+".yml")
}
