package otel

import (
	"context"
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name         string
		endpoint     string
		override     bool
		wantTarget   string
		wantInsecure bool
		wantErr      bool
	}{
		{name: "bare host port", endpoint: "localhost:4317", wantTarget: "localhost:4317", wantInsecure: true},
		{name: "http url", endpoint: "http://collector:4317", wantTarget: "collector:4317", wantInsecure: true},
		{name: "https url", endpoint: "https://collector:4317", wantTarget: "collector:4317", wantInsecure: false},
		{name: "https with override", endpoint: "https://collector:4317", override: true, wantTarget: "collector:4317", wantInsecure: true},
		{name: "path is dropped", endpoint: "http://collector:4317/v1/traces", wantTarget: "collector:4317", wantInsecure: true},
		{name: "missing host", endpoint: "http://", wantErr: true},
		{name: "unparseable", endpoint: "http://%zz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, insecure, err := parseTarget(tt.endpoint, tt.override)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseTarget(%q) should fail", tt.endpoint)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTarget(%q): %v", tt.endpoint, err)
			}
			if target != tt.wantTarget || insecure != tt.wantInsecure {
				t.Errorf("parseTarget(%q) = %q, %v; want %q, %v", tt.endpoint, target, insecure, tt.wantTarget, tt.wantInsecure)
			}
		})
	}
}

func TestNewProviders_EmptyEndpointIsNoop(t *testing.T) {
	p, err := NewProviders(context.Background(), "   ", "painel-auth", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
		t.Fatal("no-op providers should still be non-nil")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("no-op Shutdown: %v", err)
	}
}
