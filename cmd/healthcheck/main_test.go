package main

import "testing"

func TestHealthURL(t *testing.T) {
	tests := []struct {
		name, url, addr, want string
	}{
		{"default", "", "", "http://localhost:8080/healthz"},
		{"port only", "", ":9090", "http://localhost:9090/healthz"},
		{"host and port", "", "0.0.0.0:8081", "http://0.0.0.0:8081/healthz"},
		{"explicit url", "http://bot:8080/healthz", ":9090", "http://bot:8080/healthz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HEALTHCHECK_URL", tt.url)
			t.Setenv("HTTP_ADDR", tt.addr)
			if got := healthURL(); got != tt.want {
				t.Errorf("healthURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
