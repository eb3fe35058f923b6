package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"questcal/internal/model"
	"questcal/internal/tz"
)

// CalendarConfig describes one calendar subscription.
type CalendarConfig struct {
	// URL is an ICS endpoint, a file:// URL or a local path.
	URL string `yaml:"url" json:"url" validate:"required"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id" validate:"required"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password" validate:"required"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// Timezone is the IANA zone used when a goal names none.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required"`

	// WeekStart is the default week boundary: "monday" or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start" validate:"oneof=monday sunday"`

	// RefreshCron is a standard 5-field cron expression (e.g. "*/15 * * * *")
	// driving the calendar watcher.
	RefreshCron string `yaml:"refresh" json:"refresh" validate:"required"`

	// DefaultDurationMin is the session length when a goal names none.
	DefaultDurationMin int `yaml:"default_duration_min" json:"default_duration_min" validate:"min=1,max=1440"`

	// MaxOccurrences caps occurrence lists accepted by the API.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences" validate:"min=1"`

	LogLevel  string `yaml:"log_level" json:"log_level" validate:"oneof=debug info error"`
	LogFormat string `yaml:"log_format" json:"log_format" validate:"oneof=console json"`

	// GoalSpec is the path of the watched goal (JSON or YAML).
	GoalSpec string `yaml:"goal_spec,omitempty" json:"goal_spec,omitempty"`

	// Calendars are the user's calendar subscriptions.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars" validate:"dive"`

	// CacheDir holds fetched calendar bodies.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:             "127.0.0.1:8080",
		Timezone:           "Asia/Seoul",
		WeekStart:          "monday",
		RefreshCron:        "*/15 * * * *",
		DefaultDurationMin: 60,
		MaxOccurrences:     100,
		LogLevel:           "info",
		LogFormat:          "console",
		Calendars:          []CalendarConfig{},
		CacheDir:           "./var/calendar-cache",
	}
}

// Normalize fills in missing values so partially-filled configs behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart != "monday" && c.WeekStart != "sunday" {
		c.WeekStart = def.WeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.DefaultDurationMin <= 0 {
		c.DefaultDurationMin = def.DefaultDurationMin
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = def.MaxOccurrences
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
}

// Validate checks field formats, the refresh cron expression and the zone.
func (c *Config) Validate() error {
	var errs []error
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh: %w", err))
	}
	if _, err := tz.Load(c.Timezone); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WeekBoundary maps WeekStart to a weekday.
func (c *Config) WeekBoundary() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is read and defaults are filled in.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".questcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// LoadGoalSpec reads a GoalSpec from a .json, .yaml or .yml file and
// validates it.
func LoadGoalSpec(path string) (model.GoalSpec, error) {
	var spec model.GoalSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, err
	}
	if err := DecodeGoalSpec(path, data, &spec); err != nil {
		return spec, err
	}
	if err := spec.Validate(); err != nil {
		return spec, fmt.Errorf("goal spec %s: %w", path, err)
	}
	return spec, nil
}

// DecodeGoalSpec unmarshals data by the extension of name without
// validating the result.
func DecodeGoalSpec(name string, data []byte, spec *model.GoalSpec) error {
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, spec)
	default:
		err = json.Unmarshal(data, spec)
	}
	if err != nil {
		return fmt.Errorf("goal spec %s: %w", name, err)
	}
	return nil
}

// SaveGoalSpec writes spec as indented JSON or YAML by extension.
func SaveGoalSpec(path string, spec model.GoalSpec) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(spec)
	default:
		data, err = json.MarshalIndent(spec, "", "  ")
	}
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}
