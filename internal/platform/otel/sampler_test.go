package otel

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func sampleRoot(s sdktrace.Sampler, id trace.TraceID) sdktrace.SamplingDecision {
	return s.ShouldSample(sdktrace.SamplingParameters{ParentContext: context.Background(), TraceID: id, Name: "sessionstore.get"}).Decision
}

func TestSamplerRatio(t *testing.T) {
	low := trace.TraceID{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	high := trace.TraceID{0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	if got := sampleRoot(sampler(1), high); got != sdktrace.RecordAndSample {
		t.Fatalf("ratio 1 decision = %v, want RecordAndSample", got)
	}
	if got := sampleRoot(sampler(0), low); got != sdktrace.Drop {
		t.Fatalf("ratio 0 decision = %v, want Drop", got)
	}
	half := sampler(0.5)
	if got := sampleRoot(half, low); got != sdktrace.RecordAndSample {
		t.Fatalf("ratio 0.5 low trace id = %v, want RecordAndSample", got)
	}
	if got := sampleRoot(half, high); got != sdktrace.Drop {
		t.Fatalf("ratio 0.5 high trace id = %v, want Drop", got)
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv("SESSIONSTORE_OTEL_ENABLED", "")
	t.Setenv("SESSIONSTORE_OTEL_ENDPOINT", "")
	t.Setenv("SESSIONSTORE_OTEL_SAMPLE_RATIO", "")

	s, err := loadSettings()
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if !s.Enabled || s.Endpoint != "" || s.SampleRatio != 1 {
		t.Fatalf("settings = %+v", s)
	}
}
