// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App     AppConfig     `koanf:"app"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Tracing TracingConfig `koanf:"tracing"`
	Cache   CacheConfig   `koanf:"cache"`
	Router  RouterConfig  `koanf:"router"`
	Device  DeviceConfig  `koanf:"device"`
	Nets    NetsConfig    `koanf:"nets"`
	Report  ReportConfig  `koanf:"report"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// CacheConfig - кэш результатов поиска соединений
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // для in-memory
}

// Address возвращает адрес кэша
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RouterConfig - параметры параллельного роутера соединений
type RouterConfig struct {
	Threads         int    `koanf:"threads"`           // рабочие горутины, включая вызывающую
	Queue           string `koanf:"queue"`             // binary, four_ary, multi_queue
	QueuesPerThread int    `koanf:"queues_per_thread"` // только для multi_queue
	Pruning         string `koanf:"pruning"`           // deterministic, relaxed
	LockStripes     int    `koanf:"lock_stripes"`      // 0 - по мьютексу на узел
	DetailedStats   bool   `koanf:"detailed_stats"`    // счётчики по типам узлов
	Flat            bool   `koanf:"flat"`              // flat-роутинг (внутрикластерные узлы)
	ChokePoints     bool   `koanf:"choke_points"`

	// Стоимость
	Criticality           float64 `koanf:"criticality"`
	AstarFac              float64 `koanf:"astar_fac"`
	AstarOffset           float64 `koanf:"astar_offset"`
	PostTargetPruneFac    float64 `koanf:"post_target_prune_fac"`
	PostTargetPruneOffset float64 `koanf:"post_target_prune_offset"`
	BendCost              float64 `koanf:"bend_cost"`
	PresFac               float64 `koanf:"pres_fac"`

	// High fanout
	HighFanoutThreshold int `koanf:"high_fanout_threshold"`
	HighFanoutBinSize   int `koanf:"high_fanout_bin_size"`
	HighFanoutMinNodes  int `koanf:"high_fanout_min_nodes"`
	HighFanoutBBMargin  int `koanf:"high_fanout_bb_margin"`

	// Расширение bbox сети при маршрутизации
	BBFactor int `koanf:"bb_factor"`
}

// DeviceConfig - откуда берётся граф ресурсов
type DeviceConfig struct {
	File           string `koanf:"file"` // YAML описание; пусто - синтетическое устройство
	Width          int    `koanf:"width"`
	Height         int    `koanf:"height"`
	Layers         int    `koanf:"layers"`
	ChannelWidth   int    `koanf:"channel_width"`
	SegmentLength  int    `koanf:"segment_length"`
	PinsPerTile    int    `koanf:"pins_per_tile"`
	PassTransistor bool   `koanf:"pass_transistor"`
}

// NetsConfig - генерация тестовых цепей для бенчмарка
type NetsConfig struct {
	Count     int   `koanf:"count"`
	MaxFanout int   `koanf:"max_fanout"`
	Seed      int64 `koanf:"seed"`
}

// ReportConfig - выгрузка отчётов по прогону
type ReportConfig struct {
	OutputDir string   `koanf:"output_dir"`
	Formats   []string `koanf:"formats"` // xlsx, pdf, json
	Title     string   `koanf:"title"`
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Log.Format == "" {
		c.Log.Format = "json"
		if c.IsDevelopment() {
			c.Log.Format = "text"
		}
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %s", c.Log.Format))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port))
	}

	// Роутер
	if c.Router.Threads < 1 {
		errs = append(errs, fmt.Sprintf("router.threads must be at least 1, got %d", c.Router.Threads))
	}

	validQueues := map[string]bool{"binary": true, "four_ary": true, "multi_queue": true}
	if !validQueues[c.Router.Queue] {
		errs = append(errs, fmt.Sprintf("router.queue must be one of: binary, four_ary, multi_queue, got %s", c.Router.Queue))
	}

	validPruning := map[string]bool{"deterministic": true, "relaxed": true}
	if !validPruning[c.Router.Pruning] {
		errs = append(errs, fmt.Sprintf("router.pruning must be one of: deterministic, relaxed, got %s", c.Router.Pruning))
	}

	if c.Router.LockStripes < 0 {
		errs = append(errs, "router.lock_stripes must be non-negative")
	}

	if c.Router.Criticality < 0 || c.Router.Criticality > 1 {
		errs = append(errs, fmt.Sprintf("router.criticality must be in [0, 1], got %g", c.Router.Criticality))
	}

	if c.Router.AstarFac < 0 {
		errs = append(errs, "router.astar_fac must be non-negative")
	}

	if c.Router.PostTargetPruneFac < 0 {
		errs = append(errs, "router.post_target_prune_fac must be non-negative")
	}

	if c.Router.HighFanoutBinSize < 1 {
		errs = append(errs, "router.high_fanout_bin_size must be at least 1")
	}

	// Устройство
	if c.Device.File == "" {
		if c.Device.Width < 2 || c.Device.Height < 2 {
			errs = append(errs, fmt.Sprintf("device must be at least 2x2, got %dx%d", c.Device.Width, c.Device.Height))
		}
		if c.Device.Layers < 1 {
			errs = append(errs, "device.layers must be at least 1")
		}
		if c.Device.ChannelWidth < 1 || c.Device.SegmentLength < 1 {
			errs = append(errs, "device.channel_width and device.segment_length must be positive")
		}
	}

	validFormats := map[string]bool{"xlsx": true, "pdf": true, "json": true}
	for _, f := range c.Report.Formats {
		if !validFormats[f] {
			errs = append(errs, fmt.Sprintf("report.formats: unsupported format %s", f))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment проверяет режим разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}
