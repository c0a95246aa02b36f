// Package artifact names the diagnostic files a run leaves behind.
package artifact

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Prefixes for step screenshots.
const (
	PrefixFailedStep  = "failed-step"
	PrefixSuccessStep = "success-step"
)

var nonWord = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// SanitizeName replaces every run of non-word characters with a single
// underscore so the result is safe as a file name on every platform.
func SanitizeName(name string) string {
	sanitized := nonWord.ReplaceAllString(name, "_")
	if sanitized == "" {
		return "unnamed"
	}
	return sanitized
}

// Timestamp renders t as an ISO-8601 UTC instant with millisecond precision,
// with ':' and '.' replaced by '-'.
func Timestamp(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}

// ScreenshotPath returns dir/<prefix>-<sanitized scenario>-<timestamp>.png.
func ScreenshotPath(dir, prefix, scenario string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s-%s.png", prefix, SanitizeName(scenario), Timestamp(at)))
}

// TracePath returns dir/<sanitized scenario>-<timestamp>.zip.
func TracePath(dir, scenario string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.zip", SanitizeName(scenario), Timestamp(at)))
}

// ReportPath returns dir/mke2e-report-<timestamp>.json.
func ReportPath(dir string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("mke2e-report-%s.json", at.Format("20060102-150405")))
}
