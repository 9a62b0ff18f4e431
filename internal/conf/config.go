// config.go: settings struct and functions to load and validate the
// sampleagent configuration.
package conf

import (
	"embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ciscoittech/sampleagent/internal/errors"
	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// LogSettings describes a rotating log file target.
type LogSettings struct {
	Enabled    bool   // true to enable this log
	Path       string // path to the log file
	MaxSizeMB  int    // maximum size of the log file before rotation
	MaxBackups int    // number of rotated files to keep
	MaxAgeDays int    // maximum age of rotated files in days
}

// MainSettings contains general application settings.
type MainSettings struct {
	Name string      // name of this node, used in logs
	Log  LogSettings // application log settings
}

// PlausibleRange is the tempo window octave correction folds estimates into.
type PlausibleRange struct {
	Low  float64 // lowest plausible BPM for a loop
	High float64 // highest plausible BPM for a loop
}

// TempoSettings contains tempo validation and consensus settings.
type TempoSettings struct {
	PlausibleRange     PlausibleRange
	OutlierThreshold   float64 // max distance from the group median in BPM
	OneShotMaxDuration float64 // clips shorter than this are one-shots, seconds
}

// BackendsSettings selects and weights analyzer backends.
type BackendsSettings struct {
	Enabled []string           // backend ids to register
	Weights map[string]float64 // static weight per backend id
}

// TimeoutSettings bounds backend calls and whole analyses.
type TimeoutSettings struct {
	BackendMs int // per-backend call timeout in milliseconds
	GlobalMs  int // whole-analysis timeout in milliseconds
}

// WorkerPoolSettings bounds analysis concurrency.
type WorkerPoolSettings struct {
	Size int // number of concurrent backend calls per process
}

// AubioSettings configures the aubio CLI backend.
type AubioSettings struct {
	BinPath string // path to the aubio binary, searched on PATH when empty
}

// MLBeatSettings configures the external ML model backend.
type MLBeatSettings struct {
	Runner string // interpreter used to run the model script
	Script string // path to the model runner script
	Model  string // path to the model directory
}

// AnalysisSettings contains all analysis pipeline settings.
type AnalysisSettings struct {
	AcceptedSampleRates []int // sample rates the orchestrator accepts, Hz
	Backends            BackendsSettings
	Tempo               TempoSettings
	Timeouts            TimeoutSettings
	WorkerPool          WorkerPoolSettings
	Aubio               AubioSettings
	MLBeat              MLBeatSettings
}

// TaxonomySettings maps fine-grained genre labels to production buckets.
type TaxonomySettings struct {
	File    string            // optional YAML file overriding the mapping
	Mapping map[string]string // keyword -> bucket
	Default string            // bucket for labels matching no rule
}

// GenreSettings contains genre classification settings.
type GenreSettings struct {
	Taxonomy TaxonomySettings
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable the metrics endpoint
	Listen  string // IP address and port to listen on
}

// AuditSettings configures the per-analysis structured audit log.
type AuditSettings struct {
	Enabled bool
	Log     LogSettings
}

// CacheSettings configures the analysis result cache.
type CacheSettings struct {
	Enabled    bool
	TTLSeconds int
}

// Settings is the root of the sampleagent configuration.
type Settings struct {
	Debug     bool // true to enable debug level logging
	Main      MainSettings
	Analysis  AnalysisSettings
	Genre     GenreSettings
	Telemetry TelemetrySettings
	Audit     AuditSettings
	Cache     CacheSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into a new Settings struct.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := loadTaxonomyOverride(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = settings

	return settings, nil
}

// initViper sets up the viper configuration paths and reads the config file,
// falling back to the embedded defaults when no file exists on disk.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		return createDefaultConfig(configPaths[0])
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first
// configuration path and loads it.
func createDefaultConfig(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")
	defaultConfig, err := configFiles.ReadFile("config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded default config: %w", err)
	}

	if err := os.MkdirAll(configPath, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if err := os.WriteFile(configFile, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	log.Printf("created default config file at %s", configFile)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the list of directories searched for a
// config file, in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{}

	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "sampleagent"))
	}

	paths = append(paths, ".")
	return paths, nil
}

// Setting returns the process-wide settings, loading them on first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("error loading settings: %v", err)
			}
		}
	})

	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// BackendTimeout returns the per-backend timeout as a duration.
func (s *AnalysisSettings) BackendTimeout() time.Duration {
	return time.Duration(s.Timeouts.BackendMs) * time.Millisecond
}

// GlobalTimeout returns the whole-analysis timeout as a duration.
func (s *AnalysisSettings) GlobalTimeout() time.Duration {
	return time.Duration(s.Timeouts.GlobalMs) * time.Millisecond
}

// BackendWeight returns the configured static weight for a backend,
// defaulting to 1.0 when unset.
func (s *BackendsSettings) BackendWeight(id string) float64 {
	if w, ok := s.Weights[id]; ok {
		return w
	}
	return 1.0
}

// SampleRateAccepted reports whether the given rate is in the accepted set.
func (s *AnalysisSettings) SampleRateAccepted(rate int) bool {
	for _, r := range s.AcceptedSampleRates {
		if r == rate {
			return true
		}
	}
	return false
}
