package influxdb

import (
	"errors"
	"testing"

	"github.com/pawlink/pawlink-core/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled: false,
	}

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestWrite_DisconnectedIsNoop(t *testing.T) {
	// A zero-value client is never connected; writes must not panic.
	c := &Client{}

	c.WritePosition("TRAXAS1", 52.0, 4.0, 10.0, 1.2)
	c.WriteBattery("TRAXAS1", 80, true)
	c.WriteStreamHealth("connected", 3.2)
	c.WritePoint("custom", map[string]string{"a": "b"}, map[string]interface{}{"v": 1})
}

func TestClose_NilClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero-value client = %v, want nil", err)
	}
}

func TestIsConnected_Default(t *testing.T) {
	c := &Client{}
	if c.IsConnected() {
		t.Error("zero-value client should not report connected")
	}
}
