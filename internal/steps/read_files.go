package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/template"
)

// ReadFiles reads one or more files into the context.
//
// path is a string, a comma-separated string or a list; each entry is
// rendered. A single file is stored as is; several are combined according
// to merge_mode: "concat" (default) joins them as "File: <path>" sections,
// "dict" stores a map from path to content. Files ending in .json, .yaml
// or .yml are parsed; if parsing fails the raw text is kept.
type ReadFiles struct {
	cfg    step.Config
	logger *slog.Logger
}

func NewReadFiles(cfg step.Config, logger *slog.Logger) (step.Step, error) {
	if _, ok := cfg["path"]; !ok {
		return nil, fmt.Errorf("read_files: missing required field 'path'")
	}
	if stringField(cfg, "content_key", "") == "" {
		return nil, fmt.Errorf("read_files: missing required field 'content_key'")
	}
	switch mode := stringField(cfg, "merge_mode", "concat"); mode {
	case "concat", "dict":
	default:
		return nil, fmt.Errorf("read_files: unknown merge_mode %q", mode)
	}
	return &ReadFiles{cfg: cfg, logger: logger}, nil
}

func (s *ReadFiles) Execute(_ context.Context, rc *runctx.Context) error {
	paths, err := s.paths(rc)
	if err != nil {
		return fmt.Errorf("read_files: %w", err)
	}
	key, err := renderField(s.cfg, "content_key", rc)
	if err != nil {
		return fmt.Errorf("read_files: %w", err)
	}
	optional, err := boolField(s.cfg, "optional", false)
	if err != nil {
		return fmt.Errorf("read_files: %w", err)
	}
	mode := stringField(s.cfg, "merge_mode", "concat")

	type file struct {
		path    string
		raw     string
		content any
	}
	var files []file
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("optional file not found", "path", p)
				continue
			}
			return fmt.Errorf("read_files: %w", err)
		}
		s.logger.Debug("read file", "path", p, "bytes", len(data))
		files = append(files, file{path: p, raw: string(data), content: parseContent(p, data)})
	}

	switch {
	case len(paths) == 1:
		var v any = ""
		if len(files) == 1 {
			v = files[0].content
		}
		if mode == "dict" {
			m := map[string]any{}
			if len(files) == 1 {
				m[files[0].path] = v
			}
			v = m
		}
		rc.Set(key, v)
	case mode == "dict":
		m := make(map[string]any, len(files))
		for _, f := range files {
			m[f.path] = f.content
		}
		rc.Set(key, m)
	default:
		parts := make([]string, 0, len(files))
		for _, f := range files {
			parts = append(parts, "File: "+f.path+"\n"+f.raw)
		}
		rc.Set(key, strings.Join(parts, "\n\n"))
	}
	s.logger.Info("stored file content", "key", key, "files", len(files))
	return nil
}

func (s *ReadFiles) paths(rc *runctx.Context) ([]string, error) {
	var raw []string
	switch v := s.cfg["path"].(type) {
	case string:
		rendered, err := template.Render(v, rc)
		if err != nil {
			return nil, err
		}
		raw = strings.Split(rendered, ",")
	case []any:
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("path entries must be strings, got %T", item)
			}
			rendered, err := template.Render(str, rc)
			if err != nil {
				return nil, err
			}
			raw = append(raw, rendered)
		}
	case []string:
		for _, str := range v {
			rendered, err := template.Render(str, rc)
			if err != nil {
				return nil, err
			}
			raw = append(raw, rendered)
		}
	default:
		return nil, fmt.Errorf("path must be a string or a list, got %T", v)
	}

	paths := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("path is empty")
	}
	return paths, nil
}

func parseContent(path string, data []byte) any {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var v any
		if err := json.Unmarshal(data, &v); err == nil {
			return v
		}
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err == nil && v != nil {
			return v
		}
	}
	return string(data)
}
