package sanitize_test

import (
	"testing"

	"github.com/tgrecall/tgrecall/internal/sanitize"
)

func TestFlatten(t *testing.T) {
	t.Parallel()

	policy := sanitize.NewTelegramPolicy()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "plain text",
			input:    "обсуждали сроки доставки",
			expected: "обсуждали сроки доставки",
		},
		{
			name:     "bold markdown stripped",
			input:    "**важно** проверить дедлайн",
			expected: "важно проверить дедлайн",
		},
		{
			name:     "inline code stripped",
			input:    "запусти `go build` перед коммитом",
			expected: "запусти go build перед коммитом",
		},
		{
			name:     "heading becomes its own line",
			input:    "# Итоги\nо сроках договорились",
			expected: "Итоги\n\nо сроках договорились",
		},
		{
			name:     "bullet list keeps items on separate lines",
			input:    "- срок\n- бюджет",
			expected: "срок\n\nбюджет",
		},
		{
			name:     "raw html tags dropped",
			input:    "<b>жирный</b> текст",
			expected: "жирный текст",
		},
		{
			name:     "html entities unescaped",
			input:    "вопросы & ответы",
			expected: "вопросы & ответы",
		},
		{
			name:     "blank line runs collapsed",
			input:    "строка один\n\n\n\nстрока два",
			expected: "строка один\n\nстрока два",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := policy.Flatten(tc.input)
			if got != tc.expected {
				t.Errorf("Flatten(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}
