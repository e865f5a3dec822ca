package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellEscape(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain path", "/tmp/media/clip.mp4", "/tmp/media/clip.mp4"},
		{"empty", "", "''"},
		{"spaces", "/tmp/my downloads", "'/tmp/my downloads'"},
		{"output template", "%(title)s.%(ext)s", "'%(title)s.%(ext)s'"},
		{"format selector", "bestvideo[height<=1080]+bestaudio/best", "'bestvideo[height<=1080]+bestaudio/best'"},
		{"query string", "https://www.youtube.com/watch?v=x&t=10", "'https://www.youtube.com/watch?v=x&t=10'"},
		{"single quote", "/tmp/it's here", `'/tmp/it'"'"'s here'`},
		{"dollar and backtick", "$HOME/`id`", "'$HOME/`id`'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellEscape(tt.input))
		})
	}
}

func TestShellEscapeCommand(t *testing.T) {
	tests := []struct {
		name     string
		binary   string
		args     []string
		expected string
	}{
		{
			name:     "simple command",
			binary:   "yt-dlp",
			args:     []string{"--no-playlist", "https://vimeo.com/1"},
			expected: "yt-dlp --no-playlist https://vimeo.com/1",
		},
		{
			name:     "binary with space",
			binary:   "/opt/my tools/yt-dlp",
			args:     []string{"--version"},
			expected: "'/opt/my tools/yt-dlp' --version",
		},
		{
			name:     "cookie path is hidden",
			binary:   "yt-dlp",
			args:     []string{"--cookies", "/home/u/cookies.txt", "-o", "/tmp/%(title)s.%(ext)s"},
			expected: "yt-dlp --cookies <redacted> -o '/tmp/%(title)s.%(ext)s'",
		},
		{
			name:     "inline credential is hidden",
			binary:   "yt-dlp",
			args:     []string{"--password=hunter2", "--extract-audio"},
			expected: "yt-dlp --password=<redacted> --extract-audio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellEscapeCommand(tt.binary, tt.args...))
		})
	}
}

func TestIsShellSpecialChar(t *testing.T) {
	for _, c := range " \t'\"$`\\!*?[](){}|;<>&~#%\n\r" {
		assert.True(t, isShellSpecialChar(c), "expected %q to be special", c)
	}
	for _, c := range "abcABC123_-./:@=+" {
		assert.False(t, isShellSpecialChar(c), "expected %q to be plain", c)
	}
}
