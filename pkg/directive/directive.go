// Package directive extracts the coding-tool instruction a model embeds in
// its reply between a pair of markup tags, e.g.
//
//	<gemini-cli>
//	Create index.html with an HTML5 skeleton.
//	</gemini-cli>
//	index.html を作成しますね。
//
// Only the first tagged span is honoured: one directive per model reply.
// Anything after it, including a second tagged span or a stray tag, stays in
// the commentary untouched.
package directive

import "strings"

// DefaultTag is the tag name the system preamble teaches the model to use.
const DefaultTag = "gemini-cli"

// Extraction is the result of scanning a model reply. It is either Found or
// NotFound.
type Extraction interface {
	extraction()
}

// Found carries the instruction and the reply with the tagged span removed.
type Found struct {
	Instruction string // trimmed, never empty
	Commentary  string // trimmed, may be empty
}

// NotFound carries the reply unchanged.
type NotFound struct {
	Original string
}

func (Found) extraction()    {}
func (NotFound) extraction() {}

// Codec scans for one tag pair.
type Codec struct {
	open, close string
}

// NewCodec returns a Codec for <tag>...</tag>. An empty tag selects DefaultTag.
func NewCodec(tag string) Codec {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		tag = DefaultTag
	}
	return Codec{open: "<" + tag + ">", close: "</" + tag + ">"}
}

// Extract finds the first opening tag and the first closing tag after it.
// A span whose inner text is blank is not a directive.
func (c Codec) Extract(output string) Extraction {
	start := strings.Index(output, c.open)
	if start < 0 {
		return NotFound{Original: output}
	}
	innerStart := start + len(c.open)
	n := strings.Index(output[innerStart:], c.close)
	if n < 0 {
		return NotFound{Original: output}
	}
	innerEnd := innerStart + n

	instruction := strings.TrimSpace(output[innerStart:innerEnd])
	if instruction == "" {
		return NotFound{Original: output}
	}
	commentary := output[:start] + output[innerEnd+len(c.close):]
	return Found{
		Instruction: instruction,
		Commentary:  strings.TrimSpace(commentary),
	}
}

// Extract scans output with the default tag.
func Extract(output string) Extraction {
	return NewCodec(DefaultTag).Extract(output)
}
