package handlers

import (
	"slices"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
)

func TestCommandArgument(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		text string
		want string
	}{
		{name: "bare command", text: "/ask", want: ""},
		{name: "command with question", text: "/ask когда дедлайн?", want: "когда дедлайн?"},
		{name: "command with bot suffix", text: "/ask@archive_bot когда дедлайн?", want: "когда дедлайн?"},
		{name: "surrounding whitespace", text: "  /ask   про сроки  ", want: "про сроки"},
		{name: "newline separator", text: "/ask\nвопрос", want: "вопрос"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := commandArgument(tc.text); got != tc.want {
				t.Errorf("commandArgument(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestParseKeywords(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		arg  string
		want []string
	}{
		{name: "empty argument", arg: "", want: nil},
		{name: "comma separated phrases", arg: "срок доставки, дедлайн", want: []string{"срок доставки", "дедлайн"}},
		{name: "whitespace separated words", arg: "срок дедлайн", want: []string{"срок", "дедлайн"}},
		{name: "lowercased and deduplicated", arg: "Срок, срок, БЮДЖЕТ", want: []string{"срок", "бюджет"}},
		{name: "blank entries dropped", arg: " , ,срок,", want: []string{"срок"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := parseKeywords(tc.arg); !slices.Equal(got, tc.want) {
				t.Errorf("parseKeywords(%q) = %q, want %q", tc.arg, got, tc.want)
			}
		})
	}
}

func TestSenderName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		from models.User
		want string
	}{
		{name: "username preferred", from: models.User{ID: 7, Username: "alice", FirstName: "Алиса"}, want: "alice"},
		{name: "profile name fallback", from: models.User{ID: 7, FirstName: "Алиса", LastName: "Иванова"}, want: "Алиса Иванова"},
		{name: "first name only", from: models.User{ID: 7, FirstName: "Алиса"}, want: "Алиса"},
		{name: "numeric id fallback", from: models.User{ID: 7}, want: "7"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := senderName(&tc.from); got != tc.want {
				t.Errorf("senderName(%+v) = %q, want %q", tc.from, got, tc.want)
			}
		})
	}
}

func TestMessageFromUpdate(t *testing.T) {
	t.Parallel()

	msg := &models.Message{
		ID:             42,
		Date:           1714557600, // 2024-05-01 10:00:00 UTC
		Chat:           models.Chat{ID: -100123, Title: "Команда"},
		From:           &models.User{ID: 7, Username: "alice"},
		ReplyToMessage: &models.Message{ID: 40},
	}

	record := messageFromUpdate(msg, "ответ про сроки")

	if record.ChatID != "-100123" {
		t.Errorf("chat id = %q, want -100123", record.ChatID)
	}
	if record.MessageID != 42 {
		t.Errorf("message id = %d, want 42", record.MessageID)
	}
	if record.Sender != "alice" || record.ChatTitle != "Команда" {
		t.Errorf("sender/title = (%q, %q)", record.Sender, record.ChatTitle)
	}
	if want := time.Unix(1714557600, 0).UTC(); !record.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", record.Timestamp, want)
	}
	if !record.ReplyToMessageID.Valid || record.ReplyToMessageID.Int64 != 40 {
		t.Errorf("reply link = %+v, want valid 40", record.ReplyToMessageID)
	}

	msg.ReplyToMessage = nil
	if record := messageFromUpdate(msg, "обычное сообщение"); record.ReplyToMessageID.Valid {
		t.Error("non-reply message should not carry a reply link")
	}
}

func TestTruncateText(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		maxRunes int
		want     string
	}{
		{name: "short text unchanged", input: "срок", maxRunes: 10, want: "срок"},
		{name: "exact length unchanged", input: "дедлайн", maxRunes: 7, want: "дедлайн"},
		{name: "cut on runes", input: "дедлайн", maxRunes: 3, want: "дед…"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := truncateText(tc.input, tc.maxRunes); got != tc.want {
				t.Errorf("truncateText(%q, %d) = %q, want %q", tc.input, tc.maxRunes, got, tc.want)
			}
		})
	}
}
