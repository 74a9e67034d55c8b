package ai

import (
	"errors"
	"regexp"
)

// ErrContextOverflow marks a completion that failed because the prompt plus
// history no longer fits the model's input window.
var ErrContextOverflow = errors.New("ai: context window exceeded")

// overflowPatterns matches the error texts Gemini returns for over-long input,
// through both the REST API and the SDK.
var overflowPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)input token count.*exceeds the maximum`),
	regexp.MustCompile(`(?i)exceeds the maximum number of tokens`),
	regexp.MustCompile(`(?i)request payload size exceeds the limit`),
	regexp.MustCompile(`(?i)context[_ ]length[_ ]exceeded`),
	regexp.MustCompile(`(?i)too many tokens`),
}

// isOverflowText reports whether an error string is a known overflow message.
func isOverflowText(s string) bool {
	if s == "" {
		return false
	}
	for _, re := range overflowPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// IsContextOverflow reports whether msg is a failed response caused by an
// over-long input. A nil msg is never an overflow.
func IsContextOverflow(msg *AssistantMessage) bool {
	if msg == nil || msg.StopReason != StopReasonError {
		return false
	}
	return isOverflowText(msg.ErrorMessage)
}
