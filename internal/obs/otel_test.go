package obs

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracerWithoutEndpointRecordsSpans(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracerConfig{ServiceName: "promanage-test", Environment: "test"})
	if err != nil {
		t.Fatalf("init tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}()

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if !span.SpanContext().IsValid() {
		t.Fatalf("expected a valid span context from the sdk provider")
	}
}
