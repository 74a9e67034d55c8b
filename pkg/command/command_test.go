package command_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/bitop-dev/relay/pkg/command"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want command.Command
	}{
		{"hello", command.Chat{Text: "hello"}},
		{" !pwd", command.Chat{Text: " !pwd"}},
		{"", command.Chat{Text: ""}},
		{"!pwd", command.PrintDir{}},
		{"!  pwd  ", command.PrintDir{}},
		{"!cd", command.ResetDir{}},
		{"!cd   ", command.ResetDir{}},
		{"!cd ../sibling", command.ChangeDir{Path: "../sibling"}},
		{"!cd\t~/src ", command.ChangeDir{Path: "~/src"}},
		{"!cd my dir", command.ChangeDir{Path: "my dir"}},
		{"!cdfoo", command.Shell{Text: "cdfoo"}},
		{"!pwd -P", command.Shell{Text: "pwd -P"}},
		{"!ls -la", command.Shell{Text: "ls -la"}},
		{"! git status ", command.Shell{Text: "git status"}},
		{"!", command.Shell{Text: ""}},
		{"!!", command.Shell{Text: "!"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, command.Classify(tt.in)); diff != "" {
				t.Errorf("Classify(%q) (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestClassify_Totality(t *testing.T) {
	inputs := []string{"x", "!x", "\x00", "!\xff\xfe", "!cd\xff", "日本語", "!日本語", strings.Repeat("!", 100)}
	for _, in := range inputs {
		got := command.Classify(in)
		_, isChat := got.(command.Chat)
		assert.Equal(t, !strings.HasPrefix(in, command.Prefix), isChat, "input %q", in)
	}
}
