package model

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "plain", content: "hello", want: "hello"},
		{name: "trimmed", content: "  hello \n", want: "hello"},
		{name: "empty", content: "", wantErr: true},
		{name: "whitespace only", content: " \t ", wantErr: true},
		{name: "at limit", content: strings.Repeat("あ", MaxContentLength), want: strings.Repeat("あ", MaxContentLength)},
		{name: "over limit", content: strings.Repeat("a", MaxContentLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeContent(tt.content)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMessageCounterpart(t *testing.T) {
	m := Message{SenderID: "alice", ReceiverID: "bob"}

	if got := m.Counterpart("alice"); got != "bob" {
		t.Errorf("Expected bob, got %s", got)
	}
	if got := m.Counterpart("bob"); got != "alice" {
		t.Errorf("Expected alice, got %s", got)
	}
}

func TestValidUserID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"", false},
		{"user-1", true},
		{strings.Repeat("a", MaxUserIDLength), true},
		{strings.Repeat("あ", MaxUserIDLength), true},
		{strings.Repeat("a", MaxUserIDLength+1), false},
	}
	for _, tt := range tests {
		if got := ValidUserID(tt.id); got != tt.want {
			t.Errorf("ValidUserID(%d runes) = %v, want %v", len([]rune(tt.id)), got, tt.want)
		}
	}
}
