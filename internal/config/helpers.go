package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// parseStringSlice parses a comma-separated string into a slice
func parseStringSlice(s string) []string {
	parts := []string{}
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// LoadEnvFile loads KEY=value lines from a .env file into the environment.
// Variables already set are left alone and a missing file is not an error.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 && (value[0] == '"' && value[len(value)-1] == '"' ||
			value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}

		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// ValidateConfigFilePath rejects config paths that traverse out of the
// working directory
func ValidateConfigFilePath(filename string) error {
	if filename == "" {
		return nil
	}
	for _, part := range strings.Split(strings.ReplaceAll(filename, "\\", "/"), "/") {
		if part == ".." {
			return fmt.Errorf("config file path cannot contain '..': %s", filename)
		}
	}
	return nil
}
