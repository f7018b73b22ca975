package log

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHTTPLogger(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"ok", http.StatusOK, "info"},
		{"not found", http.StatusNotFound, "info"},
		{"server error", http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			handler := HTTPLogger(zap.New(core).Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/activities", nil))

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("got %d log entries, expected 1", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["status"] != int64(tt.status) {
				t.Errorf("status = %v, expected %v", fields["status"], tt.status)
			}
			if fields["size"] != int64(4) {
				t.Errorf("size = %v, expected 4", fields["size"])
			}
			if entries[0].Level.String() != tt.level {
				t.Errorf("level = %s, expected %s", entries[0].Level, tt.level)
			}
		})
	}
}

func TestHTTPLoggerImplicitStatus(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := HTTPLogger(zap.New(core).Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := logs.All()[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Errorf("status = %v, expected 200", got)
	}
}

func TestInitWithRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hikster.log")

	if err := InitWithRotation(false, RotationConfig{Path: path, MaxSizeMB: 1}); err != nil {
		t.Fatalf("InitWithRotation: %v", err)
	}
	Infof("recomputed %d trail(s)", 3)
	Sync()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if len(content) == 0 {
		t.Errorf("log file is empty")
	}
}
