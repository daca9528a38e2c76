package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the complete settings of one managed binary.
type Config struct {
	// Service describes the binary and how its service is managed.
	Service ServiceConfig `yaml:"service"`
	// Source describes where releases are discovered.
	Source SourceConfig `yaml:"source"`
	// Notify configures outcome notifications.
	Notify NotifyConfig `yaml:"notify"`
	// Timeouts bound every external call of a cycle.
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	// LockFile guards against concurrent cycles. Derived from the binary path when empty.
	LockFile string `yaml:"lock_file" env:"HELPER_UPDATER_LOCK_FILE"`
	// HistoryFile stores the last cycle outcome.
	HistoryFile string `yaml:"history_file" env:"HELPER_UPDATER_HISTORY_FILE"`
	// MetricsFile is a node_exporter textfile-collector target; disabled when empty.
	MetricsFile string `yaml:"metrics_file" env:"HELPER_UPDATER_METRICS_FILE"`
	// TempDir is where artifacts are downloaded; the system temp dir when empty.
	TempDir string `yaml:"temp_dir" env:"HELPER_UPDATER_TEMP_DIR"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"HELPER_UPDATER_LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	// LogFormat is console or json.
	LogFormat string `yaml:"log_format" env:"HELPER_UPDATER_LOG_FORMAT" validate:"omitempty,oneof=console json"`
}

// ServiceConfig describes the managed binary and its service.
type ServiceConfig struct {
	// Name is the service identifier passed to the service manager (e.g. the systemd unit).
	Name string `yaml:"name" validate:"required"`
	// Binary is the absolute path of the live executable.
	Binary string `yaml:"binary" validate:"required"`
	// Manager selects the service manager: systemd, command or process.
	Manager string `yaml:"manager" validate:"omitempty,oneof=systemd command process"`
	// VersionArgs are passed to the binary to make it print its version.
	VersionArgs []string `yaml:"version_args"`
	// VersionPattern optionally extracts the version from the output (first submatch).
	VersionPattern string `yaml:"version_pattern"`
	// StopCommand, StartCommand and StatusCommand are argv templates for the command manager.
	// "{service}" is replaced by Name. StartCommand also launches the process manager.
	StopCommand   []string `yaml:"stop_command"`
	StartCommand  []string `yaml:"start_command"`
	StatusCommand []string `yaml:"status_command"`
	// Settle is how long to wait for the service to report running after start.
	Settle time.Duration `yaml:"settle"`
	// HealthAddress is an optional gRPC endpoint checked with grpc.health.v1 after start.
	HealthAddress string `yaml:"health_address" validate:"omitempty,hostname_port"`
	// HealthService is the service name sent in the health check request.
	HealthService string `yaml:"health_service"`
}

// SourceConfig describes the release source.
type SourceConfig struct {
	// Type is github, manifest or url.
	Type string `yaml:"type" validate:"required,oneof=github manifest url"`
	// Repository is "owner/name" for the github source.
	Repository string `yaml:"repository"`
	// Asset is the exact release asset name for the github source.
	Asset string `yaml:"asset"`
	// APIURL overrides the GitHub API base URL.
	APIURL string `yaml:"api_url" validate:"omitempty,url"`
	// Token is an optional GitHub token, usually given through the environment.
	Token string `yaml:"token" env:"GITHUB_TOKEN"`
	// URL is the manifest location (manifest) or the artifact location (url).
	URL string `yaml:"url" validate:"omitempty,url"`
	// Digest pins the artifact digest for the url source.
	Digest string `yaml:"digest"`
	// ArchiveMember is the file to extract when the artifact is a tarball.
	ArchiveMember string `yaml:"archive_member"`
}

// NotifyConfig configures notification channels.
type NotifyConfig struct {
	// OnNoUpdate controls whether an "already up to date" cycle notifies. Defaults to true.
	OnNoUpdate *bool `yaml:"on_no_update"`
	// WebhookURL is a shorthand for a single generic webhook channel.
	WebhookURL string `yaml:"webhook_url" env:"HELPER_UPDATER_WEBHOOK_URL" validate:"omitempty,url"`
	// Channels lists the notification targets.
	Channels []ChannelConfig `yaml:"channels" validate:"dive"`
}

// ChannelConfig is one notification target.
type ChannelConfig struct {
	Name        string            `yaml:"name" validate:"required"`
	Type        string            `yaml:"type" validate:"required,oneof=webhook slack discord ntfy"`
	URL         string            `yaml:"url" validate:"required,url"`
	MinSeverity string            `yaml:"min_severity" validate:"omitempty,oneof=info error critical"`
	Headers     map[string]string `yaml:"headers"`
}

// TimeoutsConfig bounds each external call.
type TimeoutsConfig struct {
	Discover time.Duration `yaml:"discover" env:"HELPER_UPDATER_DISCOVER_TIMEOUT"`
	Download time.Duration `yaml:"download" env:"HELPER_UPDATER_DOWNLOAD_TIMEOUT"`
	Service  time.Duration `yaml:"service" env:"HELPER_UPDATER_SERVICE_TIMEOUT"`
	Probe    time.Duration `yaml:"probe" env:"HELPER_UPDATER_PROBE_TIMEOUT"`
	Notify   time.Duration `yaml:"notify" env:"HELPER_UPDATER_NOTIFY_TIMEOUT"`
}

const (
	// DefaultConfigFilename is where the CLI looks for settings.
	DefaultConfigFilename = "/etc/helper-updater/config.yaml"

	// DefaultStateDir holds history files when no explicit path is given.
	DefaultStateDir = "/var/lib/helper-updater"

	// DefaultManager is used when service.manager is empty.
	DefaultManager = "systemd"

	DefaultDiscoverTimeout = 30 * time.Second
	DefaultDownloadTimeout = 10 * time.Minute
	DefaultServiceTimeout  = 90 * time.Second
	DefaultProbeTimeout    = 10 * time.Second
	DefaultNotifyTimeout   = 15 * time.Second
	DefaultSettle          = 5 * time.Second

	// DefaultFilePermissions is used for files the updater writes for itself.
	DefaultFilePermissions = 0o644
)

// DefaultVersionArgs is what most tools understand.
//
//nolint:gochecknoglobals // Read-only default.
var DefaultVersionArgs = []string{"--version"}

var (
	errConfigIsNotSet       = errors.New("configuration is not set")
	errBinaryNotAbsolute    = errors.New("service binary must be an absolute path")
	errRepositoryFormat     = errors.New("source repository must look like owner/name")
	errAssetRequired        = errors.New("source asset is required for the github source")
	errSourceURLRequired    = errors.New("source url is required for manifest and url sources")
	errCommandsRequired     = errors.New("stop_command, start_command and status_command are required for the command manager")
	errInvalidVersionRegexp = errors.New("invalid version_pattern")
)

// Load reads configuration from the provided path, applies environment
// overrides and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	var cfg Config
	if err := cleanenv.ReadConfig(filepath.Clean(path), &cfg); err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the provided settings and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if !filepath.IsAbs(cfg.Service.Binary) {
		return fmt.Errorf("%s: %w", cfg.Service.Binary, errBinaryNotAbsolute)
	}

	if err := validateSource(&cfg.Source); err != nil {
		return err
	}

	if cfg.Service.Manager == "" {
		cfg.Service.Manager = DefaultManager
	}

	if cfg.Service.Manager == "command" &&
		(len(cfg.Service.StopCommand) == 0 || len(cfg.Service.StartCommand) == 0 || len(cfg.Service.StatusCommand) == 0) {
		return errCommandsRequired
	}

	if cfg.Service.VersionPattern != "" {
		if _, err := regexp.Compile(cfg.Service.VersionPattern); err != nil {
			return fmt.Errorf("%w: %w", errInvalidVersionRegexp, err)
		}
	}

	if len(cfg.Service.VersionArgs) == 0 {
		cfg.Service.VersionArgs = append([]string(nil), DefaultVersionArgs...)
	}

	if cfg.Service.Settle <= 0 {
		cfg.Service.Settle = DefaultSettle
	}

	if cfg.HistoryFile == "" {
		cfg.HistoryFile = filepath.Join(DefaultStateDir, cfg.Service.Name+".history.json")
	}

	fillTimeouts(&cfg.Timeouts)

	return nil
}

// NotifyOnNoUpdate reports whether no-op cycles should notify.
func (c *Config) NotifyOnNoUpdate() bool {
	return c.Notify.OnNoUpdate == nil || *c.Notify.OnNoUpdate
}

// Channels returns the configured channels plus the webhook shorthand, if set.
func (c *Config) Channels() []ChannelConfig {
	channels := append([]ChannelConfig(nil), c.Notify.Channels...)
	if c.Notify.WebhookURL != "" {
		channels = append(channels, ChannelConfig{
			Name: "webhook",
			Type: "webhook",
			URL:  c.Notify.WebhookURL,
		})
	}

	return channels
}

func validateSource(src *SourceConfig) error {
	switch src.Type {
	case "github":
		owner, name, ok := strings.Cut(src.Repository, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("%q: %w", src.Repository, errRepositoryFormat)
		}

		if src.Asset == "" {
			return errAssetRequired
		}
	default:
		if src.URL == "" {
			return errSourceURLRequired
		}
	}

	return nil
}

func fillTimeouts(t *TimeoutsConfig) {
	if t.Discover <= 0 {
		t.Discover = DefaultDiscoverTimeout
	}

	if t.Download <= 0 {
		t.Download = DefaultDownloadTimeout
	}

	if t.Service <= 0 {
		t.Service = DefaultServiceTimeout
	}

	if t.Probe <= 0 {
		t.Probe = DefaultProbeTimeout
	}

	if t.Notify <= 0 {
		t.Notify = DefaultNotifyTimeout
	}
}
