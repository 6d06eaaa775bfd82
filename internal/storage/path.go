package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildHistoryExportPath names the parquet file holding one session's turns.
func BuildHistoryExportPath(service, sessionID string, exportedAt time.Time) (string, error) {
	if err := validatePathComponent(service, "service name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(sessionID, "session id"); err != nil {
		return "", err
	}
	ts := exportedAt.UTC()
	return path.Join(
		service,
		"history",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("turns-%s-%02d%02d%02d.parquet", sessionID, ts.Hour(), ts.Minute(), ts.Second()),
	), nil
}

// ValidateObjectKey checks a slash separated key made of safe components.
func ValidateObjectKey(key string) error {
	trimmed := strings.Trim(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return fmt.Errorf("object key is required")
	}
	for _, part := range strings.Split(trimmed, "/") {
		if err := validatePathComponent(part, "object key component"); err != nil {
			return err
		}
	}
	return nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
