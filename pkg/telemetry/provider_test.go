package telemetry

import (
	"context"
	"os"
	"testing"
)

func TestSetupProviderWithoutEndpointIsANoOp(t *testing.T) {
	old, had := os.LookupEnv("OTEL_EXPORTER_OTLP_ENDPOINT")
	os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	t.Cleanup(func() {
		if had {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", old)
		}
	})

	tracer, shutdown, err := SetupProvider(context.Background(), "scrivener-test")
	if err != nil {
		t.Fatalf("SetupProvider() error = %v", err)
	}
	if tracer == nil {
		t.Fatalf("SetupProvider() tracer = nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v, want nil for the no-op provider", err)
	}
}
