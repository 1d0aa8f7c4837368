package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stevehiehn/recipe-executor/internal/models"
	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/template"
)

// WriteFiles writes files to disk under root.
//
// Files come from files_key, a context key holding a FileGenerationResult,
// a list of FileSpecs or a single FileSpec, or from an inline files list
// whose entries carry either path/content or path_key/content_key.
type WriteFiles struct {
	cfg    step.Config
	logger *slog.Logger
}

func NewWriteFiles(cfg step.Config, logger *slog.Logger) (step.Step, error) {
	_, hasKey := cfg["files_key"]
	_, hasFiles := cfg["files"]
	if !hasKey && !hasFiles {
		return nil, fmt.Errorf("write_files: one of 'files_key' or 'files' is required")
	}
	return &WriteFiles{cfg: cfg, logger: logger}, nil
}

func (s *WriteFiles) Execute(_ context.Context, rc *runctx.Context) error {
	root, err := renderField(s.cfg, "root", rc)
	if err != nil {
		return fmt.Errorf("write_files: %w", err)
	}
	if root == "" {
		root = "."
	}

	var files []models.FileSpec
	if _, ok := s.cfg["files_key"]; ok {
		key, err := renderField(s.cfg, "files_key", rc)
		if err != nil {
			return fmt.Errorf("write_files: %w", err)
		}
		v, err := rc.Get(key)
		if err != nil {
			return fmt.Errorf("write_files: %w", err)
		}
		files, err = toFileSpecs(v)
		if err != nil {
			return fmt.Errorf("write_files: %s: %w", key, err)
		}
	} else {
		files, err = s.inlineFiles(rc)
		if err != nil {
			return fmt.Errorf("write_files: %w", err)
		}
	}

	for _, f := range files {
		if f.Path == "" {
			return fmt.Errorf("write_files: file without a path")
		}
		full := f.Path
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, full)
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("write_files: %w", err)
		}
		if err := os.WriteFile(full, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("write_files: %w", err)
		}
		s.logger.Info("wrote file", "path", full, "bytes", len(f.Content))
	}
	return nil
}

func (s *WriteFiles) inlineFiles(rc *runctx.Context) ([]models.FileSpec, error) {
	list, ok := s.cfg["files"].([]any)
	if !ok {
		return nil, fmt.Errorf("files must be a list, got %T", s.cfg["files"])
	}
	out := make([]models.FileSpec, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("files[%d] must be an object", i)
		}
		var (
			path    string
			content any
			err     error
		)
		if pk, ok := entry["path_key"].(string); ok {
			v, err := rc.Get(pk)
			if err != nil {
				return nil, err
			}
			path = fmt.Sprint(v)
		} else if p, ok := entry["path"].(string); ok {
			if path, err = template.Render(p, rc); err != nil {
				return nil, err
			}
		}
		if ck, ok := entry["content_key"].(string); ok {
			if content, err = rc.Get(ck); err != nil {
				return nil, err
			}
		} else if content, err = template.RenderValue(entry["content"], rc); err != nil {
			return nil, err
		}
		text, err := contentString(content)
		if err != nil {
			return nil, fmt.Errorf("files[%d]: %w", i, err)
		}
		out = append(out, models.FileSpec{Path: path, Content: text})
	}
	return out, nil
}

// toFileSpecs accepts the shapes a generation step or a recipe author may
// leave in the context.
func toFileSpecs(v any) ([]models.FileSpec, error) {
	switch t := v.(type) {
	case models.FileGenerationResult:
		return t.Files, nil
	case *models.FileGenerationResult:
		return t.Files, nil
	case []models.FileSpec:
		return t, nil
	case models.FileSpec:
		return []models.FileSpec{t}, nil
	case *models.FileSpec:
		return []models.FileSpec{*t}, nil
	case map[string]any:
		if files, ok := t["files"]; ok {
			return toFileSpecs(files)
		}
		f, err := mapToFileSpec(t)
		if err != nil {
			return nil, err
		}
		return []models.FileSpec{f}, nil
	case []any:
		out := make([]models.FileSpec, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("entry %d is %T, not a file", i, item)
			}
			f, err := mapToFileSpec(m)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			out = append(out, f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported file value %T", v)
	}
}

func mapToFileSpec(m map[string]any) (models.FileSpec, error) {
	path, _ := m["path"].(string)
	if path == "" {
		return models.FileSpec{}, fmt.Errorf("file has no path")
	}
	content, err := contentString(m["content"])
	if err != nil {
		return models.FileSpec{}, err
	}
	return models.FileSpec{Path: path, Content: content}, nil
}

// contentString writes strings verbatim and everything else as indented
// JSON.
func contentString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding content: %w", err)
	}
	return string(data), nil
}
