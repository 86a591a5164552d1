package core

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestLanguagesFile(t *testing.T, path string) {
	t.Helper()
	const doc = `languages:
  - key: python
    label: Python
    image: python:3.12-slim
    file_name: main.py
    command_template: "echo {input} | python /app/{file}"
    ace_mode: python
  - key: cpp
    label: C++
    image: gcc:13-bookworm
    file_name: main.cpp
    command_template: "g++ -O2 -o /app/main /app/{file} && echo {input} | /app/main"
    ace_mode: c_cpp
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write languages file: %v", err)
	}
}

func TestLoadLanguagesValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "languages.yaml")
	writeTestLanguagesFile(t, path)

	reg, err := LoadLanguages(path)
	if err != nil {
		t.Fatalf("LoadLanguages: %v", err)
	}

	spec, ok := reg.Lookup("PYTHON")
	if !ok {
		t.Fatalf("expected case-insensitive lookup to find python")
	}
	if spec.Image != "python:3.12-slim" {
		t.Fatalf("got image %q", spec.Image)
	}

	if _, ok := reg.Lookup("ruby"); ok {
		t.Fatalf("expected ruby to be absent")
	}

	images := reg.RequiredImages()
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}

	list := reg.PublicList()
	if len(list) != 2 || list[0].Key != "python" {
		t.Fatalf("got public list %+v", list)
	}
}

func TestLoadLanguagesRejectsMissingField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "languages.yaml")
	const doc = `languages:
  - key: python
    label: Python
    image: python:3.12-slim
    file_name: main.py
    ace_mode: python
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadLanguages(path); err == nil {
		t.Fatalf("expected error for missing command_template")
	}
}

func TestLoadLanguagesRejectsDuplicateKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "languages.yaml")
	const doc = `languages:
  - key: python
    label: Python
    image: python:3.12-slim
    file_name: main.py
    command_template: "python {file}"
    ace_mode: python
  - key: python
    label: Python 2
    image: python:2-slim
    file_name: main.py
    command_template: "python2 {file}"
    ace_mode: python
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadLanguages(path); err == nil {
		t.Fatalf("expected error for duplicate key")
	}
}

func TestLoadLanguagesRejectsMissingFile(t *testing.T) {
	if _, err := LoadLanguages("/nonexistent/languages.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
