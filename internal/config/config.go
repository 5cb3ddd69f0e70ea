package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/axonops/cqlorm/internal/logger"
)

// Config holds the client configuration: connection settings, keyspace
// provisioning options and the per-model defaults.
type Config struct {
	Host           string     `json:"host"`
	Port           int        `json:"port"`
	Keyspace       string     `json:"keyspace"`
	Username       string     `json:"username"`
	Password       string     `json:"password"`
	Consistency    string     `json:"consistency,omitempty"`    // e.g. "LOCAL_ONE", "QUORUM"
	ConnectTimeout int        `json:"connectTimeout,omitempty"` // seconds
	RequestTimeout int        `json:"requestTimeout,omitempty"` // seconds
	PageSize       int        `json:"pageSize,omitempty"`
	Debug          bool       `json:"debug,omitempty"`
	SSL            *SSLConfig `json:"ssl,omitempty"`

	// Environment gates destructive migrations: "production" forces the
	// "safe" policy on every model regardless of explicit settings. It is
	// resolved once here; nothing else reads ambient environment state.
	Environment string `json:"environment,omitempty"`

	CreateKeyspace             bool                 `json:"createKeyspace"`
	DefaultReplicationStrategy *ReplicationStrategy `json:"defaultReplicationStrategy,omitempty"`

	Defaults ModelDefaults `json:"defaults"`
}

// ModelDefaults are the per-model options applied when a model does not
// override them at registration.
type ModelDefaults struct {
	CreateTable bool `json:"createTable"`
	// Migration is one of "safe", "alter", "drop".
	Migration string `json:"migration,omitempty"`
	// DropTableOnSchemaChange is the legacy synonym for migration="drop".
	DropTableOnSchemaChange bool `json:"dropTableOnSchemaChange,omitempty"`
	// DisableConfirmationPrompt skips any interactive confirmation before
	// a destructive drop. Threaded through to callers; the core itself
	// never prompts.
	DisableConfirmationPrompt bool `json:"disableConfirmationPrompt,omitempty"`
	ManageSearchIndex         bool `json:"manageSearchIndex,omitempty"`
	ManageGraph               bool `json:"manageGraph,omitempty"`
}

// ReplicationStrategy is the structured replication declaration for
// keyspace creation.
type ReplicationStrategy struct {
	Class             string         `json:"class"` // "SimpleStrategy" or "NetworkTopologyStrategy"
	ReplicationFactor int            `json:"replicationFactor,omitempty"`
	DataCenters       map[string]int `json:"dataCenters,omitempty"` // for NetworkTopologyStrategy
}

// SSLConfig holds SSL/TLS configuration options
type SSLConfig struct {
	Enabled            bool   `json:"enabled"`
	CertPath           string `json:"certPath,omitempty"`           // Path to client certificate
	KeyPath            string `json:"keyPath,omitempty"`            // Path to client private key
	CAPath             string `json:"caPath,omitempty"`             // Path to CA certificate
	HostVerification   bool   `json:"hostVerification,omitempty"`   // Enable hostname verification
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty"` // Skip certificate verification (not recommended for production)
	ServerName         string `json:"serverName,omitempty"`         // Override TLS ServerName for SNI
}

// Production reports whether the environment forces the safe migration floor.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Default returns the baseline configuration before file and environment
// overrides.
func Default() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           9042,
		CreateKeyspace: true,
		DefaultReplicationStrategy: &ReplicationStrategy{
			Class:             "SimpleStrategy",
			ReplicationFactor: 1,
		},
		Defaults: ModelDefaults{
			CreateTable: true,
			Migration:   "safe",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// If customConfigPath is provided and not empty, it is used instead of
// the default locations.
func LoadConfig(customConfigPath ...string) (*Config, error) {
	config := Default()

	var configPaths []string
	if len(customConfigPath) > 0 && customConfigPath[0] != "" {
		configPaths = []string{customConfigPath[0]}
		logger.DebugfToFile("Config", "Using custom config path: %s", customConfigPath[0])
	} else {
		configPaths = []string{
			"cqlorm.json",
			filepath.Join(os.Getenv("HOME"), ".cqlorm.json"),
			filepath.Join(os.Getenv("HOME"), ".config", "cqlorm", "config.json"),
		}
	}

	var configData []byte
	var err error
	var foundPath string

	for _, path := range configPaths {
		configData, err = os.ReadFile(path) // #nosec G304 - Config file path is validated
		if err == nil {
			foundPath = path
			logger.DebugfToFile("Config", "Found config at: %s", path)
			break
		}
	}

	if len(customConfigPath) > 0 && customConfigPath[0] != "" && foundPath == "" {
		return nil, fmt.Errorf("config file not found: %s", customConfigPath[0])
	}

	if foundPath != "" {
		if err := json.Unmarshal(configData, config); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", foundPath, err)
		}
	}

	OverrideWithEnvVars(config)

	logger.DebugfToFile("Config", "Final config: host=%s, port=%d, keyspace=%s, environment=%s",
		config.Host, config.Port, config.Keyspace, config.Environment)

	return config, nil
}

// OverrideWithEnvVars overrides configuration with environment variables.
// CQLORM_* variables win over the CASSANDRA_* compatibility names.
func OverrideWithEnvVars(config *Config) {
	if host := os.Getenv("CASSANDRA_HOST"); host != "" {
		config.Host = host
	}
	if host := os.Getenv("CQLORM_HOST"); host != "" {
		config.Host = host
	}

	if port := os.Getenv("CASSANDRA_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}
	if port := os.Getenv("CQLORM_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}

	if keyspace := os.Getenv("CASSANDRA_KEYSPACE"); keyspace != "" {
		config.Keyspace = keyspace
	}
	if keyspace := os.Getenv("CQLORM_KEYSPACE"); keyspace != "" {
		config.Keyspace = keyspace
	}

	if username := os.Getenv("CASSANDRA_USERNAME"); username != "" {
		config.Username = username
	}
	if username := os.Getenv("CQLORM_USERNAME"); username != "" {
		config.Username = username
	}

	if password := os.Getenv("CASSANDRA_PASSWORD"); password != "" {
		config.Password = password
	}
	if password := os.Getenv("CQLORM_PASSWORD"); password != "" {
		config.Password = password
	}

	if env := os.Getenv("CQLORM_ENVIRONMENT"); env != "" {
		config.Environment = env
	}

	if migration := os.Getenv("CQLORM_MIGRATION"); migration != "" {
		config.Defaults.Migration = migration
	}

	if debug := os.Getenv("CQLORM_DEBUG"); debug == "true" || debug == "1" {
		config.Debug = true
	}
}
