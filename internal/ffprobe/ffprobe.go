// Package ffprobe finds the audio stream index matching a preferred
// language tag before the stream proxy spawns its transcoder. Grounded on
// the teacher's needTranscode probe in internal/tuner/gateway.go
// (exec.LookPath("ffprobe"), -show_entries JSON parsing), generalized from
// "is the codec Plex-friendly" to "which stream matches this language."
package ffprobe

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"
)

const probeTimeout = 10 * time.Second

type streamInfo struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	Tags      struct {
		Language string `json:"language"`
	} `json:"tags"`
}

type probeOutput struct {
	Streams []streamInfo `json:"streams"`
}

// PreferredAudioIndex runs ffprobe against source with a 10-second timeout
// and returns the audio-relative index (i.e. suitable for an ffmpeg
// "-map 0:a:N" selector, counting only audio streams, not ffprobe's
// absolute stream index) of the first audio stream whose language tag
// matches preferredLang (case-insensitive; ISO-639-1/2 codes are
// reconciled by comparing only their first two letters). ok is false on
// timeout, parse failure, missing ffprobe binary, or no match — callers
// then fall back to "use first audio" (spec.md §4.5).
func PreferredAudioIndex(ctx context.Context, source, preferredLang string) (idx int, ok bool) {
	if preferredLang == "" {
		return 0, false
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return 0, false
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-nostdin",
		"-show_entries", "stream=index,codec_type:stream_tags=language",
		"-of", "json",
		source,
	}
	out, err := exec.CommandContext(ctx, ffprobePath, args...).Output()
	if err != nil {
		return 0, false
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, false
	}

	want := normalizeLang(preferredLang)
	audioRelative := 0
	for _, s := range parsed.Streams {
		if s.CodecType != "audio" {
			continue
		}
		if normalizeLang(s.Tags.Language) == want {
			return audioRelative, true
		}
		audioRelative++
	}
	return 0, false
}

// normalizeLang lowercases and takes the first two letters, so "eng" and
// "en" (or "en-US") are treated as equivalent per spec.md §4.5.
func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if len(lang) < 2 {
		return lang
	}
	return lang[:2]
}
