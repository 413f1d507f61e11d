package text

import (
	"testing"
)

func TestWorkspace(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "api url", input: "https://acme.slack.com/api/emoji.list", want: "acme"},
		{name: "enterprise url", input: "https://acme.enterprise.slack.com/customize/emoji", want: "acme"},
		{name: "uppercase host", input: "https://ACME.slack.com/", want: "acme"},
		{name: "app host", input: "https://app.slack.com/client/T1", wantErr: true},
		{name: "bare slack", input: "https://slack.com/signin", wantErr: true},
		{name: "foreign host", input: "https://acme.example.com/api/", wantErr: true},
		{name: "lookalike", input: "https://acme.slack.com.evil.io/api/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Workspace(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Workspace(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Workspace(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Workspace(%q) = %q, expected %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsSlackMediaHost(t *testing.T) {
	for host, want := range map[string]bool{
		"emoji.slack-edge.com": true,
		"files.slack.com":      true,
		"a.slack-edge.com":     true,
		"media.giphy.com":      false,
		"slackmojis.com":       false,
	} {
		if got := IsSlackMediaHost(host); got != want {
			t.Errorf("IsSlackMediaHost(%q) = %v, expected %v", host, got, want)
		}
	}
}

func TestNormalizeEmojiName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Party Parrot", "party_parrot"},
		{"party__parrot!!", "party_parrot_"},
		{"already-ok_1", "already-ok_1"},
		{"ÜBER cool", "_ber_cool"},
		{"this_is_a_very_long_emoji_name_that_keeps_going", "this_is_a_very_long_emoji_name"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeEmojiName(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeEmojiName(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
			if !ValidEmojiName(got) {
				t.Errorf("normalized name %q is not valid", got)
			}
		})
	}
}

func TestValidEmojiName(t *testing.T) {
	for name, want := range map[string]bool{
		"party_parrot": true,
		"blob-dance":   true,
		"a1":           true,
		"":             false,
		"Party":        false,
		"with space":   false,
		"emoji.gif":    false,
	} {
		if got := ValidEmojiName(name); got != want {
			t.Errorf("ValidEmojiName(%q) = %v, expected %v", name, got, want)
		}
	}
}

func TestEmojiNameFromFilename(t *testing.T) {
	tests := map[string]string{
		"Party Parrot.gif":         "party_parrot",
		"/tmp/uploads/blob.v2.png": "blob_v2",
		"C:\\pics\\Cat.JPG":        "cat",
		"!!!.png":                  "emoji",
	}
	for input, want := range tests {
		if got := EmojiNameFromFilename(input); got != want {
			t.Errorf("EmojiNameFromFilename(%q) = %q, expected %q", input, got, want)
		}
	}
}

func TestEmojiNameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://emojis.slackmojis.com/emojis/images/1643514738/7421/party-parrot.gif?1643514738": "party-parrot",
		"https://cdn.example.com/Blob%20Wave.PNG":                                                 "blob_20wave",
		"https://cdn.example.com/video.mp4":                                                       "emoji",
	}
	for input, want := range tests {
		if got := EmojiNameFromURL(input); got != want {
			t.Errorf("EmojiNameFromURL(%q) = %q, expected %q", input, got, want)
		}
	}
}

func TestProcessTextPreventsInjection(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"=1+1", "'=1+1"},
		{"+1234567890", "'+1234567890"},
		{"-party", "'-party"},
		{"@SUM(A1:A10)", "'@SUM(A1:A10)"},
		{"party_parrot", "party_parrot"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ProcessText(tt.input); got != tt.expected {
			t.Errorf("ProcessText(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
