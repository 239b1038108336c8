package rendering

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Artifact formats
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ArtifactWriter serialises the whole report to a file
type ArtifactWriter struct {
	log    logrus.FieldLogger
	path   string
	format string
}

// NewArtifactWriter creates a writer for path in the given format
func NewArtifactWriter(log logrus.FieldLogger, path, format string) (*ArtifactWriter, error) {
	if format != FormatYAML && format != FormatJSON {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}

	return &ArtifactWriter{
		log:    log.WithField("component", "artifact"),
		path:   path,
		format: format,
	}, nil
}

// Name identifies the renderer
func (w *ArtifactWriter) Name() string {
	return "artifact"
}

// Render writes the report, replacing any previous artifact
func (w *ArtifactWriter) Render(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if r == nil {
		return ErrNoReport
	}

	var (
		data []byte
		err  error
	)

	switch w.format {
	case FormatJSON:
		data, err = json.MarshalIndent(r, "", "  ")
	default:
		data, err = yaml.Marshal(r)
	}

	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create artifact dir: %w", err)
		}
	}

	if err := os.WriteFile(w.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	w.log.WithField("path", w.path).Info("Wrote report artifact")

	return nil
}
