package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseStringSlice(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{}},
		{"DHL", []string{"DHL"}},
		{" dhl , hermes ,,", []string{"dhl", "hermes"}},
	}

	for _, tt := range tests {
		result := parseStringSlice(tt.input)
		if strings.Join(result, "|") != strings.Join(tt.expected, "|") || len(result) != len(tt.expected) {
			t.Errorf("parseStringSlice(%q) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# mailbox
PARCEL_TEST_HOST=imap.example.com
export PARCEL_TEST_USER="me@example.com"
PARCEL_TEST_QUOTED='single'
PARCEL_TEST_PRESET=from-file
not a pair
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"PARCEL_TEST_HOST", "PARCEL_TEST_USER", "PARCEL_TEST_QUOTED"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("PARCEL_TEST_PRESET", "from-env")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := map[string]string{
		"PARCEL_TEST_HOST":   "imap.example.com",
		"PARCEL_TEST_USER":   "me@example.com",
		"PARCEL_TEST_QUOTED": "single",
		"PARCEL_TEST_PRESET": "from-env",
	}
	for key, want := range expected {
		if got := os.Getenv(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Expected no error for missing file, got: %v", err)
	}
}

func TestValidateConfigFilePath(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		expectErr bool
	}{
		{"empty filename", "", false},
		{"valid YAML file", "parcel-tracker.yaml", false},
		{"valid TOML file", "settings.toml", false},
		{"valid .env file", ".env.test", false},
		{"directory traversal", "../../../etc/passwd", true},
		{"relative path with ..", "../config/app.yaml", true},
		{"windows traversal", `..\config\app.yaml`, true},
		{"nested path allowed", "configs/prod.yaml", false},
		{"dots in name allowed", "my..config.yaml", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfigFilePath(tt.filename)
			if tt.expectErr && err == nil {
				t.Errorf("Expected error for %s, but got none", tt.filename)
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error for %s, but got: %v", tt.filename, err)
			}
		})
	}
}
