package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_RendersTag(t *testing.T) {
	got := Default("gemini-cli")
	if !strings.Contains(got, "<gemini-cli>") || !strings.Contains(got, "</gemini-cli>") {
		t.Errorf("default preamble does not mention the directive tags")
	}
	if strings.Contains(got, TagPlaceholder) {
		t.Errorf("placeholder left in rendered preamble")
	}
}

func TestDefault_CustomTag(t *testing.T) {
	got := Default("tool")
	if !strings.Contains(got, "<tool>") {
		t.Errorf("custom tag not rendered")
	}
	if strings.Contains(got, "<gemini-cli>") {
		t.Errorf("default tag still present")
	}
}

func TestLoad_InlineWins(t *testing.T) {
	path := writeFile(t, t.TempDir(), "p.md", "from file")
	p, err := Load("use <{{tag}}> tags", path, "x")
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != SourceInline || p.Text != "use <x> tags" {
		t.Errorf("got %+v", p)
	}
}

func TestLoad_FileWithFrontmatter(t *testing.T) {
	path := writeFile(t, t.TempDir(), "p.md", "---\ndescription: terse bot\n---\n\nBe brief. Use <{{tag}}>.\n")
	p, err := Load("", path, "gemini-cli")
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != SourceFile {
		t.Errorf("Source = %q", p.Source)
	}
	if p.Description != "terse bot" {
		t.Errorf("Description = %q", p.Description)
	}
	if p.Text != "Be brief. Use <gemini-cli>." {
		t.Errorf("Text = %q", p.Text)
	}
}

func TestLoad_DefaultWhenUnset(t *testing.T) {
	p, err := Load("  ", "", "gemini-cli")
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != SourceDefault || p.Text != Default("gemini-cli") {
		t.Errorf("got source %q", p.Source)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("", filepath.Join(t.TempDir(), "nope.md"), "t"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "p.md", "---\ndescription: x\n---\n   \n")
	if _, err := Load("", path, "t"); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestSplitFrontmatter_Unterminated(t *testing.T) {
	desc, body := splitFrontmatter("---\ndescription: x\nno end")
	if desc != "" || body != "---\ndescription: x\nno end" {
		t.Errorf("got %q / %q", desc, body)
	}
}
