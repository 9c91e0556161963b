/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "shaperounder/internal/log"
	"shaperounder/internal/rounding"
	"shaperounder/internal/telemetry"
	"shaperounder/internal/vector"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type RoundingConfig struct {
	Radius    float64 `yaml:"radius"`
	Flatness  float64 `yaml:"flatness"`
	MinAngle  float64 `yaml:"min_angle"`
	MaxAngle  float64 `yaml:"max_angle"`
	EditMode  string  `yaml:"edit_mode"`  // all | corners | custom-points | custom-corners
	PointType string  `yaml:"point_type"` // all | inner | outer
	YAxis     string  `yaml:"y_axis"`     // down | up
}

type DocumentConfig struct {
	Resolution float64 `yaml:"resolution"` // dpi; coordinates are scaled by 72/resolution
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // file | sqlite | postgres
	Path    string `yaml:"path"`    // document directory or sqlite file
	DSN     string `yaml:"dsn"`     // postgres; the password lives in the OS keychain
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	BaseURL   string `yaml:"base_url"` // used by the client commands
	TimeoutMs int    `yaml:"timeout_ms"`

	// NoTokenIssue disables the unauthenticated token endpoint of "serve".
	NoTokenIssue bool `yaml:"no_token_issue"`
	// AuthSecret and the client token are not stored on disk; they live in the OS keychain.
}

type ExportConfig struct {
	LabelFont string `yaml:"label_font"` // TrueType/OpenType file for PNG labels
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
}

type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Rounding      RoundingConfig  `yaml:"rounding"`
	Document      DocumentConfig  `yaml:"document"`
	Storage       StorageConfig   `yaml:"storage"`
	Server        ServerConfig    `yaml:"server"`
	Export        ExportConfig    `yaml:"export"`
	Logging       LoggingConfig   `yaml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Defaults returns the application defaults.
func Defaults() AppConfig {
	p := rounding.DefaultParams()
	return AppConfig{
		ConfigVersion: 1,
		Rounding: RoundingConfig{
			Radius:    p.Radius,
			Flatness:  p.Flatness,
			MinAngle:  p.AngleMin,
			MaxAngle:  p.AngleMax,
			EditMode:  p.Mode.String(),
			PointType: p.Filter.String(),
			YAxis:     p.YAxis.String(),
		},
		Document:  DocumentConfig{Resolution: 72},
		Storage:   StorageConfig{Backend: BackendFile, Path: "."},
		Server:    ServerConfig{Addr: ":8080", BaseURL: "http://localhost:8080", TimeoutMs: 10000},
		Logging:   LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
		Telemetry: TelemetryConfig{},
	}
}

// Env var names used as overrides.
const (
	EnvRadius         = "SHR_RADIUS"
	EnvFlatness       = "SHR_FLATNESS"
	EnvEditMode       = "SHR_EDIT_MODE"
	EnvResolution     = "SHR_RESOLUTION"
	EnvStorageBackend = "SHR_STORAGE_BACKEND"
	EnvStoragePath    = "SHR_STORAGE_PATH"
	EnvPGDSN          = "SHR_PG_DSN"
	EnvServerAddr     = "SHR_SERVER_ADDR"
	EnvBackendURL     = "SHR_BACKEND_URL"
	EnvLabelFont      = "SHR_LABEL_FONT"
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "ShapeRounder")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "ShapeRounder")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "shaperounder")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present) over the defaults and applies environment
// overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file. A missing file is not an error.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// fields absent from the file keep their defaults
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	normalize(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func normalize(cfg *AppConfig) {
	lower := func(s *string) { *s = strings.ToLower(strings.TrimSpace(*s)) }
	lower(&cfg.Rounding.EditMode)
	lower(&cfg.Rounding.PointType)
	lower(&cfg.Rounding.YAxis)
	lower(&cfg.Storage.Backend)
	lower(&cfg.Logging.Level)
	lower(&cfg.Logging.Format)
	cfg.Storage.Path = strings.TrimSpace(cfg.Storage.Path)
	cfg.Logging.File = strings.TrimSpace(cfg.Logging.File)
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvRadius)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Rounding.Radius = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvFlatness)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Rounding.Flatness = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvEditMode)); v != "" {
		cfg.Rounding.EditMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvResolution)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Document.Resolution = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageBackend)); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPGDSN)); v != "" {
		cfg.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLabelFont)); v != "" {
		cfg.Export.LabelFont = v
	}
	if v := strings.TrimSpace(os.Getenv(telemetry.EnvOptIn)); v != "" {
		cfg.Telemetry.OptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(telemetry.EnvEventsURL)); v != "" {
		cfg.Telemetry.EventsURL = v
	}
	if v := strings.TrimSpace(os.Getenv(telemetry.EnvCrashURL)); v != "" {
		cfg.Telemetry.CrashURL = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(applog.EnvLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(applog.EnvFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(applog.EnvSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(applog.EnvFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env := map[string]string{
		"rounding.radius":     EnvRadius,
		"rounding.flatness":   EnvFlatness,
		"rounding.edit_mode":  EnvEditMode,
		"document.resolution": EnvResolution,
		"storage.backend":     EnvStorageBackend,
		"storage.path":        EnvStoragePath,
		"storage.dsn":         EnvPGDSN,
		"server.addr":         EnvServerAddr,
		"server.base_url":     EnvBackendURL,
		"telemetry.opt_in":    telemetry.EnvOptIn,
		"logging.level":       applog.EnvLevel,
		"logging.format":      applog.EnvFormat,
		"logging.source":      applog.EnvSource,
		"logging.file":        applog.EnvFile,
	}[key]
	if env != "" && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// Params converts the rounding section into validated rounding parameters.
func (r RoundingConfig) Params() (rounding.Params, error) {
	p := rounding.Params{Radius: r.Radius, Flatness: r.Flatness, AngleMin: r.MinAngle, AngleMax: r.MaxAngle}
	var err error
	if p.Mode, err = rounding.ParseEditMode(r.EditMode); err != nil {
		return p, err
	}
	if p.Filter, err = rounding.ParsePointTypeFilter(r.PointType); err != nil {
		return p, err
	}
	if p.YAxis, err = vector.ParseYAxis(r.YAxis); err != nil {
		return p, fmt.Errorf("%w: %v", rounding.ErrValidation, err)
	}
	return p, p.Validate()
}

// Scale returns the factor applied to coordinates (72/resolution).
func (d DocumentConfig) Scale() (float64, error) {
	if d.Resolution <= 0 {
		return 0, fmt.Errorf("%w: document resolution must be > 0, got %v", rounding.ErrValidation, d.Resolution)
	}
	s := 72 / d.Resolution
	return s, rounding.ValidateScale(s)
}

// LogOptions maps the logging section onto the logger's options.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}

// TelemetryClientConfig builds the telemetry client configuration.
func (t TelemetryConfig) TelemetryClientConfig() telemetry.Config {
	c := telemetry.FromEnv()
	c.OptIn = t.OptIn
	c.EventsURL = t.EventsURL
	c.CrashURL = t.CrashURL
	return c
}

// EffectiveTimeout returns the client timeout, falling back to the default.
func (s ServerConfig) EffectiveTimeout() time.Duration {
	if s.TimeoutMs <= 0 {
		return time.Duration(Defaults().Server.TimeoutMs) * time.Millisecond
	}
	return time.Duration(s.TimeoutMs) * time.Millisecond
}
