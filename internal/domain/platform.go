package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Known platform names
const (
	PlatformYouTube    = "YouTube"
	PlatformTikTok     = "TikTok"
	PlatformFacebook   = "Facebook"
	PlatformInstagram  = "Instagram"
	PlatformX          = "X"
	PlatformVimeo      = "Vimeo"
	PlatformSoundCloud = "SoundCloud"
	PlatformUnknown    = "Unknown"
)

var platformHosts = []struct {
	suffix   string
	platform string
}{
	{"youtube.com", PlatformYouTube},
	{"youtu.be", PlatformYouTube},
	{"tiktok.com", PlatformTikTok},
	{"facebook.com", PlatformFacebook},
	{"fb.watch", PlatformFacebook},
	{"instagram.com", PlatformInstagram},
	{"twitter.com", PlatformX},
	{"x.com", PlatformX},
	{"vimeo.com", PlatformVimeo},
	{"soundcloud.com", PlatformSoundCloud},
}

var platformIcons = map[string]string{
	PlatformYouTube:    "📺",
	PlatformTikTok:     "🎵",
	PlatformFacebook:   "📘",
	PlatformInstagram:  "📸",
	PlatformX:          "🐦",
	PlatformVimeo:      "🎬",
	PlatformSoundCloud: "🎧",
}

// DetectPlatform derives a platform name from a URL host.
// Unrecognised hosts are returned as-is without a leading "www.".
func DetectPlatform(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	for _, ph := range platformHosts {
		if host == ph.suffix || strings.HasSuffix(host, "."+ph.suffix) {
			return ph.platform
		}
	}
	return strings.TrimPrefix(host, "www.")
}

// PlatformIcon returns the icon shown next to a platform name
func PlatformIcon(platform string) string {
	if icon, ok := platformIcons[platform]; ok {
		return icon
	}
	return "🌐"
}

// FormatDuration renders seconds as m:ss, or h:mm:ss past an hour. Zero is "N/A".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "N/A"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
