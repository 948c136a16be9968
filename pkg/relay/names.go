// Copyright 2024-2026 Aiku AI

package relay

import (
	"fmt"
	"strings"
)

// ModerationEmoji is the reaction that lets the original author of a mirror
// request its deletion.
const ModerationEmoji = "\U0001F5D1️" // 🗑️

// proxySuffix is the display-name marker appended by the Embed Fixer
// compatibility proxy.
const proxySuffix = " (Embed Fixer)"

// relayNameMarker separates the author name from the origin community name
// in mirror usernames. EncodeRelayName and DecodeRelayName are the only two
// places allowed to know this format.
const relayNameMarker = " (from:"

// StripProxySuffix removes the Embed Fixer marker from a display name, so
// proxy-wrapped authors are handled under their real name.
func StripProxySuffix(name string) string {
	return strings.TrimSuffix(name, proxySuffix)
}

// EncodeRelayName builds the impersonation username for a mirror.
func EncodeRelayName(author, community string) string {
	return fmt.Sprintf("%s%s%s)", author, relayNameMarker, community)
}

// DecodeRelayName recovers the author and origin community from a mirror
// username. ok is false when the name does not carry the relay marker.
// A community name containing the marker text itself can still round-trip
// because the split happens at the first marker occurrence, matching what
// EncodeRelayName produced for a plain author name.
func DecodeRelayName(username string) (author, community string, ok bool) {
	if !strings.HasSuffix(username, ")") {
		return "", "", false
	}
	idx := strings.Index(username, relayNameMarker)
	if idx < 0 {
		return "", "", false
	}
	author = username[:idx]
	community = username[idx+len(relayNameMarker) : len(username)-1]
	return author, community, true
}

// mediaExtensions is the fixed set of file extensions the pre-filter
// recognizes as media when scanning message text.
var mediaExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif",
	".mp4", ".mov", ".webm", ".mp3", ".wav", ".ogg",
}

// HasMediaExtension reports whether the content mentions any known media
// file extension. It is a cheap pre-filter, not a URL parser.
func HasMediaExtension(content string) bool {
	lower := strings.ToLower(content)
	for _, ext := range mediaExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}
