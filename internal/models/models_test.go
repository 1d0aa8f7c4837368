package models

import (
	"encoding/json"
	"testing"
)

func TestParseFileGenerationResult(t *testing.T) {
	r, err := ParseFileGenerationResult([]byte(`{"files":[{"path":"a.md","content":"# A"}],"commentary":"done"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Files) != 1 || r.Files[0].Path != "a.md" {
		t.Errorf("unexpected files %+v", r.Files)
	}
	if r.Commentary != "done" {
		t.Errorf("expected commentary 'done', got %q", r.Commentary)
	}
}

func TestParseRequiresFilesField(t *testing.T) {
	_, err := ParseFileGenerationResult([]byte(`{"commentary":"nothing"}`))
	if err == nil {
		t.Fatal("expected error for missing files")
	}
}

func TestParseAcceptsEmptyFiles(t *testing.T) {
	r, err := ParseFileGenerationResult([]byte(`{"files":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Files == nil || len(r.Files) != 0 {
		t.Errorf("expected empty non-nil files, got %#v", r.Files)
	}
}

func TestParseRejectsFileWithoutPath(t *testing.T) {
	_, err := ParseFileGenerationResult([]byte(`{"files":[{"content":"x"}]}`))
	if err == nil {
		t.Fatal("expected error for file without path")
	}
}

func TestMarshalKeepsEmptyFiles(t *testing.T) {
	data, err := json.Marshal(FileGenerationResult{Files: []FileSpec{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"files":[]}` {
		t.Errorf("unexpected JSON %s", data)
	}
}

func TestDeepCopyIsolatesFiles(t *testing.T) {
	orig := FileGenerationResult{Files: []FileSpec{{Path: "a", Content: "1"}}}
	cp := orig.DeepCopy().(FileGenerationResult)
	cp.Files[0].Content = "2"
	if orig.Files[0].Content != "1" {
		t.Error("expected copy to be independent")
	}
}
