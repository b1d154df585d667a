package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
cloud:
  base_url: "https://graph.test.example"
  email: "owner@example.com"
  password: "hunter2-hunter2"
  poll_interval: 900
  monitor_interval: 10
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8093
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cloud.BaseURL != "https://graph.test.example" {
		t.Errorf("Cloud.BaseURL = %q, want %q", cfg.Cloud.BaseURL, "https://graph.test.example")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if got := cfg.GetPollInterval(); got != 900*time.Second {
		t.Errorf("GetPollInterval() = %v, want %v", got, 900*time.Second)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	content := `
cloud:
  base_url: "https://graph.test.example"
database:
  path: "/tmp/test.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for missing credentials, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
cloud:
  email: "owner@example.com"
  password: "file-password"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("PAWLINK_CLOUD_PASSWORD", "env-password")
	t.Setenv("PAWLINK_MQTT_HOST", "broker.local")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cloud.Password != "env-password" {
		t.Errorf("Cloud.Password = %q, want env override %q", cfg.Cloud.Password, "env-password")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "broker.local")
	}
}

func TestValidate_QoSRange(t *testing.T) {
	cfg := defaultConfig()
	cfg.Cloud.Email = "owner@example.com"
	cfg.Cloud.Password = "secret"
	cfg.MQTT.QoS = 3

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for qos=3, got nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Cloud.PollInterval != 1800 {
		t.Errorf("default poll_interval = %d, want 1800", cfg.Cloud.PollInterval)
	}
	if cfg.MQTT.Broker.ClientID != "pawlink-core" {
		t.Errorf("default client_id = %q, want %q", cfg.MQTT.Broker.ClientID, "pawlink-core")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default logging level = %q, want info", cfg.Logging.Level)
	}
}
