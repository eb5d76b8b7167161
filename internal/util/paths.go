package util

import (
	"path"
	"regexp"
	"strings"
)

// Artifact file names of a published run
const (
	ManifestFile   = "manifest.json"
	ScriptFile     = "script.json"
	StepsFile      = "steps.json"
	MarkupFile     = "markup.xml"
	TranscriptFile = "transcript.txt"
)

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidRunID reports whether id is safe to embed in an artifact path
func ValidRunID(id string) bool {
	return runIDPattern.MatchString(id)
}

// RunPrefix returns the storage prefix of every artifact of a run
func RunPrefix(runID string) string {
	return path.Join("podcasts", runID) + "/"
}

// RunPath returns the storage path of one artifact of a run
func RunPath(runID, name string) string {
	return path.Join("podcasts", runID, name)
}

// AudioFile returns the artifact name of the podcast audio
func AudioFile(format string) string {
	if format == "" {
		format = "wav"
	}
	return "podcast." + format
}

// AudioFormats returns the list of supported audio formats to try
func AudioFormats() []string {
	return []string{"wav", "mp3", "ogg", "flac"}
}

// AudioContentType returns the MIME type served for an audio format
func AudioContentType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "ogg":
		return "audio/ogg"
	case "flac":
		return "audio/flac"
	default:
		return "audio/wav"
	}
}

// SafeFilename reduces a title to ASCII letters, digits, '_' and '-',
// falling back when nothing is left
func SafeFilename(title, fallback string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-':
			return r
		}
		return -1
	}, strings.TrimSpace(title))
	if name == "" {
		return fallback
	}
	return name
}
