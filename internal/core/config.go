package core

import (
	"fmt"
	"os"

	"github.com/go-playground/validator"
	"github.com/jo-hoe/worldscars/internal/backend/cache"
	"github.com/jo-hoe/worldscars/internal/backend/commandstructure"
	"github.com/jo-hoe/worldscars/internal/backend/storage"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultThumbnailWidth = 480
	defaultMaxUploadBytes = 10 << 20
	defaultMaxPageSize    = 100
	defaultMaxImagePixels = 50_000_000
)

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type" validate:"oneof=sqlite postgres"`
	ConnectionString string `yaml:"connectionString" validate:"required"`
}

type RateLimit struct {
	// Rate is the number of requests per second refilled into the bucket, 0 disables limiting
	Rate  float64 `yaml:"rate" validate:"min=0"`
	Burst int64   `yaml:"burst" validate:"min=0"`
}

type APIConfig struct {
	AllowedOrigins  []string  `yaml:"allowedOrigins" validate:"min=1"`
	MaxUploadBytes  int64     `yaml:"maxUploadBytes" validate:"min=1"`
	MaxPageSize     int       `yaml:"maxPageSize" validate:"min=1"`
	// MaxImagePixels bounds width*height of uploads before they are decoded.
	MaxImagePixels  int64     `yaml:"maxImagePixels" validate:"min=1"`
	UploadRateLimit RateLimit `yaml:"uploadRateLimit"`
}

type ServiceConfig struct {
	Port           int             `yaml:"port" validate:"min=1,max=65535"`
	LogLevel       string          `yaml:"logLevel" validate:"oneof=debug info warn error"`
	LogFormat      string          `yaml:"logFormat" validate:"oneof=text json"`
	ThumbnailWidth int             `yaml:"thumbnailWidth" validate:"min=1"`
	Database       Database        `yaml:"database"`
	Storage        storage.Config  `yaml:"storage"`
	Cache          cache.Config    `yaml:"cache"`
	API            APIConfig       `yaml:"api"`
	Commands       []CommandConfig `yaml:"commands"`
}

// LoadConfig loads configuration from the specified YAML file.
// ${VAR} references are expanded from the environment before parsing.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config, err := ParseConfig([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return config, nil
}

// ParseConfig parses YAML, applies defaults and validates the result
func ParseConfig(data []byte) (*ServiceConfig, error) {
	var config ServiceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateCommands(config.Commands); err != nil {
		return nil, fmt.Errorf("invalid command configuration: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a configuration that runs without any external service:
// SQLite in the working directory and uploads stored under ./media.
func DefaultConfig() *ServiceConfig {
	config := &ServiceConfig{}
	config.applyDefaults()
	return config
}

func (config *ServiceConfig) applyDefaults() {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.ThumbnailWidth == 0 {
		config.ThumbnailWidth = defaultThumbnailWidth
	}
	if config.Database.Type == "" {
		config.Database.Type = "sqlite"
	}
	if config.Database.Type == "sqlite" && config.Database.ConnectionString == "" {
		config.Database.ConnectionString = "file:worldscars.db"
	}
	if config.Storage.Type == "" {
		config.Storage.Type = "filesystem"
	}
	if config.Storage.Type == "filesystem" && config.Storage.Directory == "" {
		config.Storage.Directory = "media"
	}
	if config.Cache.Type == "" {
		config.Cache.Type = "none"
	}
	if len(config.API.AllowedOrigins) == 0 {
		config.API.AllowedOrigins = []string{"*"}
	}
	if config.API.MaxUploadBytes == 0 {
		config.API.MaxUploadBytes = defaultMaxUploadBytes
	}
	if config.API.MaxPageSize == 0 {
		config.API.MaxPageSize = defaultMaxPageSize
	}
	if config.API.MaxImagePixels == 0 {
		config.API.MaxImagePixels = defaultMaxImagePixels
	}
}

// commandConfigs converts the YAML command list into registry configurations
func (config *ServiceConfig) commandConfigs() []commandstructure.CommandConfig {
	configs := make([]commandstructure.CommandConfig, len(config.Commands))
	for i, cmd := range config.Commands {
		configs[i] = commandstructure.CommandConfig{Name: cmd.Name, Params: cmd.Params}
	}
	return configs
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		// Validate name is not empty
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}

		// Validate name is unique
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true

		if !commandstructure.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command %s at index %d (available: %v)",
				cmd.Name, i, commandstructure.DefaultRegistry.GetRegisteredNames())
		}
	}

	return nil
}
