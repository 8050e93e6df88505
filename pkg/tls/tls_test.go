package tls

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "cert.pem")
	if err := os.WriteFile(existing, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "disabled", cfg: Config{}},
		{name: "missing paths", cfg: Config{Enabled: true, CertFile: existing}, wantErr: true},
		{name: "missing file", cfg: Config{Enabled: true, CertFile: existing, KeyFile: existing, CAFile: filepath.Join(dir, "nope")}, wantErr: true},
		{name: "all present", cfg: Config{Enabled: true, CertFile: existing, KeyFile: existing, CAFile: existing}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewServerTLSConfig_BadFiles(t *testing.T) {
	dir := t.TempDir()
	junk := filepath.Join(dir, "junk.pem")
	if err := os.WriteFile(junk, []byte("not pem"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewServerTLSConfig(Config{}); err == nil {
		t.Error("expected error for empty config")
	}
	if _, err := NewServerTLSConfig(Config{CertFile: junk, KeyFile: junk, CAFile: junk}); err == nil {
		t.Error("expected error for unparsable certificate")
	}
	if _, err := NewClientTLSConfig(Config{CertFile: junk, KeyFile: junk, CAFile: junk}); err == nil {
		t.Error("expected error for unparsable certificate")
	}
}
