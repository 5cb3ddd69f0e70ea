package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cqlorm.json")

	configContent := `{
	"host": "testhost.example.com",
	"port": 9043,
	"keyspace": "shop",
	"environment": "production",
	"createKeyspace": false,
	"defaultReplicationStrategy": {
		"class": "NetworkTopologyStrategy",
		"dataCenters": {"dc1": 3, "dc2": 2}
	},
	"defaults": {
		"createTable": true,
		"migration": "drop",
		"manageSearchIndex": true
	}
}`

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Host != "testhost.example.com" {
		t.Errorf("Expected host to be 'testhost.example.com', got '%s'", config.Host)
	}
	if config.Port != 9043 {
		t.Errorf("Expected port to be 9043, got %d", config.Port)
	}
	if config.Keyspace != "shop" {
		t.Errorf("Expected keyspace to be 'shop', got '%s'", config.Keyspace)
	}
	if !config.Production() {
		t.Error("Expected Production() to be true for environment=production")
	}
	if config.CreateKeyspace {
		t.Error("Expected CreateKeyspace to be false")
	}
	if config.DefaultReplicationStrategy == nil {
		t.Fatal("Expected DefaultReplicationStrategy to be set")
	}
	if config.DefaultReplicationStrategy.Class != "NetworkTopologyStrategy" {
		t.Errorf("Expected NetworkTopologyStrategy, got '%s'", config.DefaultReplicationStrategy.Class)
	}
	if config.DefaultReplicationStrategy.DataCenters["dc1"] != 3 {
		t.Errorf("Expected dc1 replication factor 3, got %d", config.DefaultReplicationStrategy.DataCenters["dc1"])
	}
	if config.Defaults.Migration != "drop" {
		t.Errorf("Expected migration 'drop', got '%s'", config.Defaults.Migration)
	}
	if !config.Defaults.ManageSearchIndex {
		t.Error("Expected ManageSearchIndex to be true")
	}
}

func TestLoadConfigMissingCustomPath(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("Expected error for missing custom config path")
	}
}

func TestDefaults(t *testing.T) {
	config := Default()

	if config.Host != "127.0.0.1" {
		t.Errorf("Expected default host 127.0.0.1, got '%s'", config.Host)
	}
	if config.Port != 9042 {
		t.Errorf("Expected default port 9042, got %d", config.Port)
	}
	if !config.Defaults.CreateTable {
		t.Error("Expected createTable to default to true")
	}
	if config.Defaults.Migration != "safe" {
		t.Errorf("Expected default migration 'safe', got '%s'", config.Defaults.Migration)
	}
	if config.Production() {
		t.Error("Expected Production() to be false by default")
	}
}

func TestOverrideWithEnvVars(t *testing.T) {
	t.Setenv("CASSANDRA_HOST", "cassandra.internal")
	t.Setenv("CQLORM_PORT", "9100")
	t.Setenv("CQLORM_KEYSPACE", "env_ks")
	t.Setenv("CQLORM_ENVIRONMENT", "production")
	t.Setenv("CQLORM_MIGRATION", "alter")

	config := Default()
	OverrideWithEnvVars(config)

	if config.Host != "cassandra.internal" {
		t.Errorf("Expected host 'cassandra.internal', got '%s'", config.Host)
	}
	if config.Port != 9100 {
		t.Errorf("Expected port 9100, got %d", config.Port)
	}
	if config.Keyspace != "env_ks" {
		t.Errorf("Expected keyspace 'env_ks', got '%s'", config.Keyspace)
	}
	if !config.Production() {
		t.Error("Expected Production() to be true")
	}
	if config.Defaults.Migration != "alter" {
		t.Errorf("Expected migration 'alter', got '%s'", config.Defaults.Migration)
	}
}

func TestCQLORMEnvWinsOverCassandraEnv(t *testing.T) {
	t.Setenv("CASSANDRA_HOST", "old.internal")
	t.Setenv("CQLORM_HOST", "new.internal")

	config := Default()
	OverrideWithEnvVars(config)

	if config.Host != "new.internal" {
		t.Errorf("Expected CQLORM_HOST to win, got '%s'", config.Host)
	}
}
