package services

import (
	"regexp"
	"strconv"
)

const folderTitleLimit = 50

var (
	// unsafeChars matches anything outside letters, marks, digits, underscore, whitespace and hyphen.
	unsafeChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s\p{Z}-]`)
	spaceRuns   = regexp.MustCompile(`[\s\p{Z}]+`)
)

// FolderIdentity derives the filesystem-safe folder name for a listing. It is a
// pure function of the ordinal and the raw title, so ordinals keep it unique
// even when two titles sanitise to the same text.
func FolderIdentity(title string, ordinal int) string {
	clean := unsafeChars.ReplaceAllString(title, "")
	clean = spaceRuns.ReplaceAllString(clean, "_")
	if r := []rune(clean); len(r) > folderTitleLimit {
		clean = string(r[:folderTitleLimit])
	}
	return strconv.Itoa(ordinal) + "_" + clean
}
