// Package prompts resolves the instruction preamble sent with every model
// call.
//
// The preamble teaches the model the directive protocol: when a request maps
// to a file or code action, the model wraps one instruction for the coding
// tool in a tag pair and adds a short message for the user.
//
// Resolution order:
//   - inline text from configuration (system_prompt)
//   - a Markdown file (system_prompt_file), optional YAML frontmatter allowed
//   - the embedded default preamble
//
// The placeholder {{tag}} is replaced with the directive tag name, so a
// preamble stays valid when the tag is reconfigured.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed preamble.md
var defaultPreamble string

// TagPlaceholder is substituted with the directive tag name.
const TagPlaceholder = "{{tag}}"

// Source values reported in Preamble.Source.
const (
	SourceDefault = "default"
	SourceInline  = "inline"
	SourceFile    = "file"
)

// Preamble is a resolved instruction preamble.
type Preamble struct {
	Text        string
	Description string // from frontmatter, file sources only
	Source      string
	FilePath    string
}

// Default returns the embedded preamble rendered for tag.
func Default(tag string) string {
	return Render(defaultPreamble, tag)
}

// Render replaces every TagPlaceholder in text with tag.
func Render(text, tag string) string {
	return strings.ReplaceAll(text, TagPlaceholder, tag)
}

// Load resolves the preamble. inline wins over path; both empty selects the
// embedded default. A path that cannot be read is an error.
func Load(inline, path, tag string) (Preamble, error) {
	if strings.TrimSpace(inline) != "" {
		return Preamble{Text: Render(inline, tag), Source: SourceInline}, nil
	}
	if path == "" {
		return Preamble{Text: Default(tag), Source: SourceDefault}, nil
	}

	path = expandHome(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return Preamble{}, fmt.Errorf("prompts: read %s: %w", path, err)
	}
	desc, body := splitFrontmatter(string(data))
	body = strings.TrimSpace(body)
	if body == "" {
		return Preamble{}, fmt.Errorf("prompts: %s is empty", path)
	}
	abs, _ := filepath.Abs(path)
	return Preamble{
		Text:        Render(body, tag),
		Description: desc,
		Source:      SourceFile,
		FilePath:    abs,
	}, nil
}

// splitFrontmatter splits a markdown file into its frontmatter description
// and body. Returns ("", content) if there is no frontmatter.
func splitFrontmatter(content string) (description, body string) {
	lines := strings.Split(content, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != "---" {
		return "", content
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
		k, v, ok := strings.Cut(lines[i], ":")
		if ok && strings.TrimSpace(k) == "description" {
			description = strings.TrimSpace(v)
		}
	}
	if end == -1 {
		return "", content
	}
	return description, strings.Join(lines[end+1:], "\n")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}
