package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadTLSConfigFromInlinePEM(t *testing.T) {
	certPEM, keyPEM, err := generatePEMPair("localhost", time.Hour)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	t.Setenv("SINGLECERTS_CERT_PEM", string(certPEM))
	t.Setenv("SINGLECERTS_KEY_PEM", string(keyPEM))

	cfg, err := loadTLSConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("certificates = %d, want 1", len(cfg.Certificates))
	}
}

func TestLoadTLSConfigFromEnvPaths(t *testing.T) {
	certPEM, keyPEM, err := generatePEMPair("localhost", time.Hour)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SINGLECERTS_CERT_PEM", "")
	t.Setenv("SINGLECERTS_CERT_PATH", certPath)
	t.Setenv("SINGLECERTS_KEY_PATH", keyPath)

	cfg, err := loadTLSConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("certificates = %d, want 1", len(cfg.Certificates))
	}
}

// Inline PEM wins over env paths.
func TestLoadTLSConfigPrecedence(t *testing.T) {
	certPEM, keyPEM, err := generatePEMPair("localhost", time.Hour)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	t.Setenv("SINGLECERTS_CERT_PEM", string(certPEM))
	t.Setenv("SINGLECERTS_KEY_PEM", string(keyPEM))
	t.Setenv("SINGLECERTS_CERT_PATH", "/nonexistent/server.crt")
	t.Setenv("SINGLECERTS_KEY_PATH", "/nonexistent/server.key")

	if _, err := loadTLSConfig(); err != nil {
		t.Errorf("inline PEM should win over bad paths: %v", err)
	}
}

func TestLoadTLSConfigMissingDefaults(t *testing.T) {
	t.Setenv("SINGLECERTS_CERT_PEM", "")
	t.Setenv("SINGLECERTS_CERT_PATH", "")
	t.Chdir(t.TempDir())

	if _, err := loadTLSConfig(); err == nil {
		t.Error("missing default certificates accepted")
	}
}

func TestDevTLSConfig(t *testing.T) {
	cfg, fingerprint, err := devTLSConfig(time.Hour, "localhost")
	if err != nil {
		t.Fatalf("dev config: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("certificates = %d, want 1", len(cfg.Certificates))
	}
	if len(fingerprint) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fingerprint))
	}
}
