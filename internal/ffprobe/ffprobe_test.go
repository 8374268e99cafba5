package ffprobe

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func fakeFFprobe(t *testing.T, stdout string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffprobe script is POSIX shell only")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	body := "#!/bin/sh\ncat <<'EOF'\n" + stdout + "\nEOF\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

const sampleProbeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "tags": {}},
    {"index": 1, "codec_type": "audio", "tags": {"language": "eng"}},
    {"index": 2, "codec_type": "audio", "tags": {"language": "spa"}}
  ]
}`

func TestPreferredAudioIndexMatchesByLanguage(t *testing.T) {
	fakeFFprobe(t, sampleProbeJSON)
	idx, ok := PreferredAudioIndex(context.Background(), "fake-source", "spa")
	if !ok || idx != 1 {
		t.Fatalf("idx=%d ok=%v, want 1/true (audio-relative, not absolute stream index)", idx, ok)
	}
}

func TestPreferredAudioIndexFirstTwoLettersFallback(t *testing.T) {
	fakeFFprobe(t, sampleProbeJSON)
	idx, ok := PreferredAudioIndex(context.Background(), "fake-source", "en-US")
	if !ok || idx != 0 {
		t.Fatalf("idx=%d ok=%v, want 0/true", idx, ok)
	}
}

func TestPreferredAudioIndexNoMatchReturnsFalse(t *testing.T) {
	fakeFFprobe(t, sampleProbeJSON)
	_, ok := PreferredAudioIndex(context.Background(), "fake-source", "jpn")
	if ok {
		t.Fatal("expected no match")
	}
}

func TestPreferredAudioIndexBadJSONReturnsFalse(t *testing.T) {
	fakeFFprobe(t, "not json")
	_, ok := PreferredAudioIndex(context.Background(), "fake-source", "eng")
	if ok {
		t.Fatal("expected parse failure to yield false")
	}
}

func TestPreferredAudioIndexMissingBinaryReturnsFalse(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, ok := PreferredAudioIndex(context.Background(), "fake-source", "eng")
	if ok {
		t.Fatal("expected missing ffprobe binary to yield false")
	}
}

func TestPreferredAudioIndexEmptyLangReturnsFalse(t *testing.T) {
	_, ok := PreferredAudioIndex(context.Background(), "fake-source", "")
	if ok {
		t.Fatal("expected empty preferred language to yield false without probing")
	}
}
