package scraper

import (
	"regexp"
	"strings"

	"github.com/ibeckermayer/xblueprint/internal/types"
)

var (
	handleSuffix  = regexp.MustCompile(` / @.*$`)
	trailingAt    = regexp.MustCompile(`@\w+$`)
	avatarPattern = regexp.MustCompile(`(?i)^https://\S+\.(?:jpg|png|jpeg|webp)`)
)

// DefaultAvatarURL returns the avatar used when a source exposes none
func DefaultAvatarURL(handle string) string {
	return "https://unavatar.io/twitter/" + handle
}

// SynthesizedProfile is the profile reported when nothing could be fetched
func SynthesizedProfile(handle string) types.Profile {
	return types.Profile{
		Handle:      handle,
		DisplayName: handle,
	}
}

// deriveProfile builds a profile from source metadata, filling gaps from the handle
func deriveProfile(n *Normalizer, handle, title, imageURL, bio string) types.Profile {
	name := n.Clean(title)
	name = handleSuffix.ReplaceAllString(name, "")
	name = strings.TrimSpace(trailingAt.ReplaceAllString(name, ""))
	if name == "" {
		name = handle
	}

	avatar := strings.TrimSpace(imageURL)
	if !avatarPattern.MatchString(avatar) {
		avatar = DefaultAvatarURL(handle)
	}

	return types.Profile{
		Handle:      handle,
		DisplayName: name,
		AvatarURL:   avatar,
		Bio:         Truncate(n.Clean(bio), maxBioRunes),
	}
}
