package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the per-installation file (kiosk.yaml) read at startup.
type Settings struct {
	AppID     string `yaml:"app_id"`
	Taxonomy  string `yaml:"taxonomy"`
	Listen    string `yaml:"listen"`
	LogLevel  string `yaml:"log_level"`
	UserAgent string `yaml:"user_agent"`
	Screen    string `yaml:"screen"`

	Defaults KioskDefaults    `yaml:"defaults"`
	Storage  StorageSettings  `yaml:"storage"`
	Timings  TimingSettings   `yaml:"timings"`
	Queue    QueueSettings    `yaml:"queue"`
	Netwatch NetwatchSettings `yaml:"netwatch"`
	Alert    AlertSettings    `yaml:"alert"`
	Device   DeviceSettings   `yaml:"device"`
}

// KioskDefaults are the compiled-in values the persisted kiosk config is
// merged over.
type KioskDefaults struct {
	APIURL   string `yaml:"api_url"`
	Site     string `yaml:"site"`
	DeviceID string `yaml:"device_id"`
	PIN      string `yaml:"pin"`
}

type StorageSettings struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type TimingSettings struct {
	ThankYou  time.Duration `yaml:"thank_you"`
	Idle      time.Duration `yaml:"idle"`
	Debounce  time.Duration `yaml:"debounce"`
	InputLock time.Duration `yaml:"input_lock"`
	LongPress time.Duration `yaml:"long_press"`
}

type QueueSettings struct {
	Cap            int           `yaml:"cap"`
	DrainInterval  time.Duration `yaml:"drain_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type NetwatchSettings struct {
	Interval time.Duration `yaml:"interval"`
}

type AlertSettings struct {
	BacklogThreshold int           `yaml:"backlog_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	ChatID           int64         `yaml:"chat_id"`
	Token            string        `yaml:"-"`
}

// DeviceSettings holds the commands used for fullscreen and wake-lock
// retention. Empty commands disable the service.
type DeviceSettings struct {
	FullscreenCmd      []string `yaml:"fullscreen_cmd"`
	FullscreenCheckCmd []string `yaml:"fullscreen_check_cmd"`
	WakeLockCmd        []string `yaml:"wake_lock_cmd"`
}

// DefaultSettings returns the values used when kiosk.yaml omits a field.
func DefaultSettings() Settings {
	return Settings{
		AppID:     "comedor",
		Taxonomy:  "comedor",
		Listen:    "127.0.0.1:8080",
		LogLevel:  "info",
		UserAgent: "kiosk-survey/1.0 (linux)",
		Screen:    "1280x800",
		Defaults: KioskDefaults{
			APIURL:   "http://localhost:8000",
			Site:     "Saltillo",
			DeviceID: "tablet-comedor-01",
			PIN:      "1234",
		},
		Storage: StorageSettings{Driver: "badger", DSN: "data/kiosk"},
		Timings: TimingSettings{
			ThankYou:  1500 * time.Millisecond,
			Idle:      30 * time.Second,
			Debounce:  350 * time.Millisecond,
			InputLock: 400 * time.Millisecond,
			LongPress: 1200 * time.Millisecond,
		},
		Queue: QueueSettings{
			Cap:            1000,
			DrainInterval:  30 * time.Second,
			RequestTimeout: 15 * time.Second,
		},
		Netwatch: NetwatchSettings{Interval: 10 * time.Second},
		Alert: AlertSettings{
			BacklogThreshold: 100,
			Cooldown:         time.Hour,
		},
	}
}

// LoadSettings reads an optional .env file, then filePath (if it exists)
// over the defaults, then environment overrides.
func LoadSettings(filePath, envFile string) (Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("failed to load env file '%s': %w", envFile, err)
		}
	}

	s := DefaultSettings()
	if filePath != "" {
		raw, err := os.ReadFile(filePath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Settings{}, fmt.Errorf("failed to read settings file '%s': %w", filePath, err)
		default:
			if err := yaml.Unmarshal(raw, &s); err != nil {
				return Settings{}, fmt.Errorf("failed to unmarshal YAML from '%s': %w", filePath, err)
			}
		}
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	overrides := map[string]*string{
		"KIOSK_APP_ID":         &s.AppID,
		"KIOSK_TAXONOMY":       &s.Taxonomy,
		"KIOSK_API_URL":        &s.Defaults.APIURL,
		"KIOSK_SITE":           &s.Defaults.Site,
		"KIOSK_DEVICE_ID":      &s.Defaults.DeviceID,
		"KIOSK_LISTEN":         &s.Listen,
		"KIOSK_LOG_LEVEL":      &s.LogLevel,
		"KIOSK_STORAGE_DRIVER": &s.Storage.Driver,
		"KIOSK_STORAGE_DSN":    &s.Storage.DSN,
	}
	for name, target := range overrides {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*target = v
		}
	}
	return s.Alert.loadFromEnv()
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.AppID) == "" {
		return fmt.Errorf("settings validation failed: app_id is empty")
	}
	if s.Queue.Cap <= 0 {
		return fmt.Errorf("settings validation failed: queue.cap must be positive, got %d", s.Queue.Cap)
	}
	if s.Queue.DrainInterval <= 0 {
		return fmt.Errorf("settings validation failed: queue.drain_interval must be positive")
	}
	if s.Netwatch.Interval <= 0 {
		return fmt.Errorf("settings validation failed: netwatch.interval must be positive")
	}
	t := s.Timings
	if t.ThankYou <= 0 || t.Idle <= 0 || t.LongPress <= 0 {
		return fmt.Errorf("settings validation failed: thank_you, idle and long_press timings must be positive")
	}
	if t.Debounce < 0 || t.InputLock < 0 {
		return fmt.Errorf("settings validation failed: debounce and input_lock cannot be negative")
	}
	return nil
}
