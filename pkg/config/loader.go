package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "FPGAROUTE_"
	configEnvVar = "FPGAROUTE_CONFIG"
)

// Loader загружает конфигурацию из разных источников
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader создаёт новый загрузчик конфигурации
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"fpgaroute.yaml",
			"config/fpgaroute.yaml",
			"/etc/fpgaroute/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption - опция для конфигурации загрузчика
type LoaderOption func(*Loader)

// WithConfigPaths устанавливает пути поиска конфигурации
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// Load загружает конфигурацию с приоритетом:
// 1. Defaults (самый низкий)
// 2. Config file (yaml)
// 3. Environment variables (самый высокий)
func (l *Loader) Load() (*Config, error) {
	// 1. Загружаем значения по умолчанию
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Загружаем из файла конфигурации
	if err := l.loadConfigFile(); err != nil {
		// Файл не обязателен: синтетическое устройство работает и на defaults
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	// 3. Загружаем из переменных окружения (перезаписывают файл)
	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	// 4. Распаковываем в структуру
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Валидируем
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// defaultValues - значения по умолчанию; ключи также задают маппинг env
func defaultValues() map[string]any {
	return map[string]any{
		// App
		"app.name":        "fpgaroute",
		"app.version":     "0.3.0",
		"app.environment": "development",
		"app.debug":       false,

		// Log
		"log.level":       "info",
		"log.format":      "", // пусто: text в development, иначе json
		"log.output":      "stderr",
		"log.file_path":   "",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   false,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "fpgaroute",
		"metrics.subsystem": "router",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "fpgaroute",
		"tracing.sample_rate":  0.1,

		// Cache
		"cache.enabled":     false,
		"cache.driver":      "memory",
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.password":    "",
		"cache.db":          0,
		"cache.default_ttl": 10 * time.Minute,
		"cache.max_entries": 100000,

		// Router
		"router.threads":           runtime.NumCPU(),
		"router.queue":             "binary",
		"router.queues_per_thread": 2,
		"router.pruning":           "deterministic",
		"router.lock_stripes":      0,
		"router.detailed_stats":    false,
		"router.flat":              false,
		"router.choke_points":      false,

		"router.criticality":              0.5,
		"router.astar_fac":                1.2,
		"router.astar_offset":             0.0,
		"router.post_target_prune_fac":    1.0,
		"router.post_target_prune_offset": 0.0,
		"router.bend_cost":                0.0,
		"router.pres_fac":                 0.5,

		"router.high_fanout_threshold": 64,
		"router.high_fanout_bin_size":  3,
		"router.high_fanout_min_nodes": 2,
		"router.high_fanout_bb_margin": 3,
		"router.bb_factor":             3,

		// Device (синтетическое устройство)
		"device.file":            "",
		"device.width":           24,
		"device.height":          24,
		"device.layers":          1,
		"device.channel_width":   12,
		"device.segment_length":  4,
		"device.pins_per_tile":   4,
		"device.pass_transistor": false,

		// Nets
		"nets.count":      200,
		"nets.max_fanout": 12,
		"nets.seed":       1,

		// Report
		"report.output_dir": "reports",
		"report.formats":    []string{},
		"report.title":      "Connection routing report",
	}
}

// loadDefaults загружает значения по умолчанию
func (l *Loader) loadDefaults() error {
	return l.k.Load(confmap.Provider(defaultValues(), "."), nil)
}

// loadConfigFile загружает конфигурацию из файла
func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv загружает конфигурацию из переменных окружения.
// FPGAROUTE_ROUTER_ASTAR_FAC -> router.astar_fac: известные ключи берутся из
// defaults, остальные - заменой подчёркиваний на точки
func (l *Loader) loadEnv() error {
	mappings := envKeyMappings()

	return l.k.Load(env.ProviderWithValue(l.envPrefix, ".", func(envKey string, value string) (string, interface{}) {
		key := strings.ToLower(strings.TrimPrefix(envKey, l.envPrefix))
		if key == "config" {
			// FPGAROUTE_CONFIG - путь к файлу, а не ключ конфигурации
			return "", nil
		}

		if mappedKey, ok := mappings[key]; ok {
			key = mappedKey
		} else {
			key = strings.ReplaceAll(key, "_", ".")
		}

		if isSliceField(key) {
			return key, splitAndTrim(value)
		}

		return key, value
	}), nil)
}

// envKeyMappings строит маппинг "router_astar_fac" -> "router.astar_fac"
func envKeyMappings() map[string]string {
	defaults := defaultValues()
	mappings := make(map[string]string, len(defaults))
	for key := range defaults {
		mappings[strings.ReplaceAll(key, ".", "_")] = key
	}
	return mappings
}

// sliceFields - поля, которые должны парситься как слайсы
var sliceFields = map[string]bool{
	"report.formats": true,
}

func isSliceField(key string) bool {
	return sliceFields[key]
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Load - удобная функция для загрузки с дефолтными настройками
func Load() (*Config, error) {
	return NewLoader().Load()
}

// LoadFile загружает конфигурацию из явно указанного файла (флаг --config)
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return NewLoader(WithConfigPaths(path)).Load()
}
