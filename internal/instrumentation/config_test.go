package instrumentation

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.ServiceName == "" {
		t.Error("expected ServiceName to be set")
	}
	if !config.Enabled {
		t.Error("expected instrumentation to be enabled by default")
	}
	if config.PrometheusEndpoint != "/metrics" {
		t.Errorf("PrometheusEndpoint = %q, want /metrics", config.PrometheusEndpoint)
	}
	if config.DetailedLabels {
		t.Error("expected detailed labels to be disabled by default")
	}
}

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "custom-service")
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("PROMETHEUS_ENDPOINT", "/custom-metrics")
	t.Setenv("METRICS_DETAILED_LABELS", "true")

	config := DefaultConfig()

	if config.ServiceName != "custom-service" {
		t.Errorf("ServiceName = %q, want custom-service", config.ServiceName)
	}
	if config.Enabled {
		t.Error("expected instrumentation to be disabled via env")
	}
	if config.PrometheusEndpoint != "/custom-metrics" {
		t.Errorf("PrometheusEndpoint = %q, want /custom-metrics", config.PrometheusEndpoint)
	}
	if !config.DetailedLabels {
		t.Error("expected detailed labels to be enabled via env")
	}
}

func TestDefaultConfig_InvalidBoolEnv(t *testing.T) {
	t.Setenv("INSTRUMENTATION_ENABLED", "not-a-bool")

	config := DefaultConfig()
	if !config.Enabled {
		t.Error("invalid bool env value should fall back to the default")
	}
}

func TestConfig_Validate(t *testing.T) {
	config := Config{PrometheusEndpoint: "/metrics"}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() error = %v for valid config", err)
	}

	config = Config{PrometheusEndpoint: "metrics"}
	if err := config.Validate(); err == nil {
		t.Error("Validate() should reject a relative metrics path")
	}

	config = Config{}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() error = %v for empty endpoint", err)
	}
}
