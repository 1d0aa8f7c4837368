// Package models holds the records shared between generation steps and the
// steps that materialize their output.
package models

import (
	"encoding/json"
	"fmt"
)

// FileSpec is one file to materialize.
type FileSpec struct {
	Path    string `json:"path" jsonschema:"description=Relative or absolute path of the file"`
	Content string `json:"content" jsonschema:"description=Full file content"`
}

// FileGenerationResult is the structured output of an LLM-backed generation
// step. Files may be empty but must be present.
type FileGenerationResult struct {
	Files      []FileSpec `json:"files"`
	Commentary string     `json:"commentary,omitempty"`
}

// DeepCopy implements runctx.Copier.
func (r FileGenerationResult) DeepCopy() any {
	r.Files = append([]FileSpec(nil), r.Files...)
	return r
}

// UnmarshalJSON rejects documents that omit the files field.
func (r *FileGenerationResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Files      *[]FileSpec `json:"files"`
		Commentary string      `json:"commentary"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Files == nil {
		return fmt.Errorf("file generation result: missing files field")
	}
	r.Files = *raw.Files
	if r.Files == nil {
		r.Files = []FileSpec{}
	}
	r.Commentary = raw.Commentary
	return nil
}

// Validate checks that every file has a path.
func (r *FileGenerationResult) Validate() error {
	if r.Files == nil {
		return fmt.Errorf("file generation result: files must be present")
	}
	for i, f := range r.Files {
		if f.Path == "" {
			return fmt.Errorf("file generation result: file %d has no path", i)
		}
	}
	return nil
}

// ParseFileGenerationResult decodes and validates a JSON document.
func ParseFileGenerationResult(data []byte) (*FileGenerationResult, error) {
	var r FileGenerationResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
