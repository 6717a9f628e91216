package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name   string `yaml:"name" toml:"name"`
	Port   int    `yaml:"port" toml:"port"`
	Render struct {
		Language string `yaml:"language" toml:"language"`
	} `yaml:"render" toml:"render"`
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_YAMLExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "vault")
	p := writeFile(t, t.TempDir(), "c.yaml", "name: ${SAMPLE_NAME}\nport: 9000\n")

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "vault" || s.Port != 9000 {
		t.Errorf("loaded = %+v", s)
	}
}

func TestLoad_TOML(t *testing.T) {
	t.Setenv("SAMPLE_LANG", "card")
	p := writeFile(t, t.TempDir(), "c.toml", "name = \"vault\"\nport = 9000\n\n[render]\nlanguage = \"${SAMPLE_LANG}\"\n")

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "vault" || s.Port != 9000 || s.Render.Language != "card" {
		t.Errorf("loaded = %+v", s)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	var s sample

	err := Load(writeFile(t, dir, "c.toml", "port = 1\n[render]\nlangauge = \"x\"\n"), &s)
	if err == nil || !strings.Contains(err.Error(), "render.langauge") {
		t.Errorf("toml typo not reported: %v", err)
	}

	err = Load(writeFile(t, dir, "c.yaml", "port: 1\nrender:\n  langauge: x\n"), &s)
	if err == nil {
		t.Error("yaml typo not reported")
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	var s sample
	if err := Load(writeFile(t, t.TempDir(), "c.ini", "port=1"), &s); err == nil {
		t.Fatal("expected error for .ini")
	}
}

func TestLoad_RunsValidator(t *testing.T) {
	p := writeFile(t, t.TempDir(), "c.yaml", "name: x\n")
	var s sample
	if err := Load(p, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadFirst(t *testing.T) {
	dir := t.TempDir()
	yml := writeFile(t, dir, "config.yaml", "name: from-yaml\nport: 1\n")

	var s sample
	used, err := LoadFirst(&s, "", filepath.Join(dir, "config.toml"), yml)
	if err != nil {
		t.Fatalf("LoadFirst: %v", err)
	}
	if used != yml || s.Name != "from-yaml" {
		t.Errorf("used %q, loaded %+v", used, s)
	}

	_, err = LoadFirst(&s, filepath.Join(dir, "missing.toml"))
	if !errors.Is(err, ErrNoConfig) {
		t.Errorf("err = %v, want ErrNoConfig", err)
	}
}
