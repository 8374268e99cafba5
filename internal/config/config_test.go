package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"JELLYSTREAM_CONFIG_FILE", "HOST", "PORT", "PUBLIC_URL",
		"MEDIA_SERVER_URL", "MEDIA_SERVER_API_KEY", "MEDIA_SERVER_USER_ID",
		"PREFERRED_AUDIO_LANGUAGE", "MEDIA_PATH_MAP",
		"SCHEDULER_LOW_WATER_HOURS", "SCHEDULER_EXTEND_DAYS", "DATABASE_URL",
		"JELLYSTREAM_FFMPEG_PATH", "JELLYSTREAM_FFPROBE_PATH",
		"JELLYSTREAM_GAP_POLL_INTERVAL",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != 8097 {
		t.Errorf("Port = %d, want 8097", c.Port)
	}
	if c.PreferredAudioLanguage != "eng" {
		t.Errorf("PreferredAudioLanguage = %q, want eng", c.PreferredAudioLanguage)
	}
	if c.SchedulerLowWaterHours != 48 {
		t.Errorf("SchedulerLowWaterHours = %d, want 48", c.SchedulerLowWaterHours)
	}
	if c.SchedulerExtendDays != 7 {
		t.Errorf("SchedulerExtendDays = %d, want 7", c.SchedulerExtendDays)
	}
	if c.GapPollInterval != 5*time.Second {
		t.Errorf("GapPollInterval = %v, want 5s", c.GapPollInterval)
	}
}

func TestLoadRejectsLocalhostPublicURL(t *testing.T) {
	clearEnv(t)
	os.Setenv("PUBLIC_URL", "http://localhost:8097")
	defer os.Unsetenv("PUBLIC_URL")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for localhost PUBLIC_URL")
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("PORT", "9001")
	os.Setenv("SCHEDULER_EXTEND_DAYS", "3")
	defer os.Unsetenv("PORT")
	defer os.Unsetenv("SCHEDULER_EXTEND_DAYS")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != 9001 {
		t.Errorf("Port = %d, want 9001", c.Port)
	}
	if c.SchedulerExtendDays != 3 {
		t.Errorf("SchedulerExtendDays = %d, want 3", c.SchedulerExtendDays)
	}
}

func TestPathMapRule(t *testing.T) {
	c := &Config{MediaPathMap: "/data/media:/mnt/media"}
	jf, local, ok := c.PathMapRule()
	if !ok || jf != "/data/media" || local != "/mnt/media" {
		t.Fatalf("PathMapRule() = %q, %q, %t", jf, local, ok)
	}
	c2 := &Config{}
	if _, _, ok := c2.PathMapRule(); ok {
		t.Fatal("expected ok=false for empty MediaPathMap")
	}
}
