package playlist

import (
	"context"
	"strings"
	"testing"

	"github.com/jellystream/jellystream/internal/store"
	"github.com/jellystream/jellystream/internal/store/storetest"
)

func TestM3U_RoundTrip(t *testing.T) {
	st := storetest.New()
	st.Channels[7] = store.Channel{ID: 7, Name: "Sci-Fi Central", Number: "101", Enabled: true}
	st.Channels[8] = store.Channel{ID: 8, Name: "Disabled Channel", Enabled: false}
	st.Channels[9] = store.Channel{ID: 9, Name: "No Number", Enabled: true}

	out, err := M3UAll(context.Background(), st, "http://media.example.com:8097")
	if err != nil {
		t.Fatalf("M3UAll: %v", err)
	}
	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Fatalf("missing #EXTM3U header: %q", out)
	}
	if strings.Contains(out, "Disabled Channel") {
		t.Fatalf("disabled channel leaked into playlist: %q", out)
	}
	if !strings.Contains(out, `tvg-chno="101"`) {
		t.Fatalf("expected channel number 101: %q", out)
	}
	if !strings.Contains(out, "http://media.example.com:8097/api/livetv/stream/7\n") {
		t.Fatalf("expected stream URL for channel 7: %q", out)
	}
	if !strings.Contains(out, `tvg-chno="100.9"`) {
		t.Fatalf("expected fallback number 100.9 for channel without a number: %q", out)
	}
}

func TestM3UOne_DisabledIsEmpty(t *testing.T) {
	st := storetest.New()
	st.Channels[1] = store.Channel{ID: 1, Name: "Off", Enabled: false}

	out, err := M3UOne(context.Background(), st, 1, "http://media.example.com")
	if err != nil {
		t.Fatalf("M3UOne: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty playlist for disabled channel, got %q", out)
	}
}

func TestM3UOne_MissingChannel(t *testing.T) {
	st := storetest.New()
	out, err := M3UOne(context.Background(), st, 404, "http://media.example.com")
	if err != nil {
		t.Fatalf("M3UOne: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty playlist for missing channel, got %q", out)
	}
}
