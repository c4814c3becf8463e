package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// ExportConfig configures itinerary export. Files land in the well-known
// artifacts directory the presentation layer watches.
type ExportConfig struct {
	ArtifactsDir string `envconfig:"ARTIFACTS_DIR" split_words:"true" default:"artifacts"`
}

// RegisterExportTool adds file.export to the registry.
func RegisterExportTool(reg *Registry, cfg ExportConfig, timeout time.Duration) error {
	dir := strings.TrimSpace(cfg.ArtifactsDir)
	if dir == "" {
		dir = "artifacts"
	}

	return reg.Register(Definition{
		Name: "file.export",
		Desc: "Save the finished itinerary to a file and return its path.",
		Params: map[string]*schema.ParameterInfo{
			"content": {Type: schema.String, Desc: "File content", Required: true},
			"name":    {Type: schema.String, Desc: "Base file name without extension"},
		},
		Timeout: timeout,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			name, _ := args["name"].(string)
			name = sanitizeName(name)
			if name == "" {
				name = "itinerary"
			}
			filename := fmt.Sprintf("%s-%s.md", name, uuid.NewString())

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create artifacts dir: %w", err)
			}
			path := filepath.Join(dir, filename)
			if err := os.WriteFile(path, []byte(args["content"].(string)), 0o644); err != nil {
				return nil, fmt.Errorf("write export file: %w", err)
			}
			return map[string]any{"path": path}, nil
		},
	})
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	return strings.Trim(name, "-.")
}
