// Package artifacts uploads scenario diagnostics to S3-compatible storage.
//
// Objects are laid out per run:
//
//	runs/<suite-id>/<scenario>/<run-id>/screenshot.png
//	runs/<suite-id>/<scenario>/<run-id>/result.json
package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/kuitang/clinicprobe/internal/runner"
)

const (
	ScreenshotName = "screenshot.png"
	ResultName     = "result.json"
)

var keyComponentPattern = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func keyComponent(s string) string {
	s = keyComponentPattern.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "unknown"
	}
	return s
}

// RunPrefix is the key prefix of one run's artifacts.
func RunPrefix(suiteID, scenarioName, runID string) string {
	return path.Join("runs", keyComponent(suiteID), keyComponent(scenarioName), keyComponent(runID)) + "/"
}

// ScreenshotKey is the key of a run's failure screenshot.
func ScreenshotKey(suiteID, scenarioName, runID string) string {
	return RunPrefix(suiteID, scenarioName, runID) + ScreenshotName
}

// ResultKey is the key of a run's JSON result.
func ResultKey(suiteID, scenarioName, runID string) string {
	return RunPrefix(suiteID, scenarioName, runID) + ResultName
}

// Uploader writes run artifacts through a Client.
type Uploader struct {
	client *Client
}

// NewUploader returns an Uploader writing to client.
func NewUploader(client *Client) *Uploader {
	return &Uploader{client: client}
}

// UploadResult stores the JSON result of res and its screenshot, when one
// was captured. It returns the locations written.
func (u *Uploader) UploadResult(ctx context.Context, suiteID string, res runner.Result) ([]string, error) {
	var written []string

	if len(res.Screenshot) > 0 {
		key := ScreenshotKey(suiteID, res.Scenario, res.RunID)
		if err := u.client.PutObject(ctx, key, res.Screenshot, "image/png"); err != nil {
			return written, err
		}
		written = append(written, u.client.Location(key))
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return written, fmt.Errorf("artifacts: encode result %s: %w", res.RunID, err)
	}
	key := ResultKey(suiteID, res.Scenario, res.RunID)
	if err := u.client.PutObject(ctx, key, data, "application/json"); err != nil {
		return written, err
	}
	return append(written, u.client.Location(key)), nil
}
