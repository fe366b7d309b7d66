// Package assets locates narration audio files by their public path.
package assets

import (
	"path"
	"strings"
)

// BaseDir is the public prefix of every narration asset.
const BaseDir = "/still-lift-audio/"

// HomepagePath is the single ambient track played on the landing screen.
const HomepagePath = BaseDir + "homepage audio.mp3"

// Extensions lists the audio formats in the order candidates are tried.
var Extensions = []string{"mp3", "m4a", "ogg", "wav"}

// IsAssetPath reports whether p is a clean path under BaseDir.
func IsAssetPath(p string) bool {
	if !strings.HasPrefix(p, BaseDir) || len(p) == len(BaseDir) {
		return false
	}
	return path.Clean(p) == p
}
