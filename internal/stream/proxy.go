// Package stream is the continuous MPEG-TS generator: for one client
// connection it resolves whichever schedule entry is current, transcodes it
// from the computed seek offset, and — when that entry's transcoder exits —
// loops to pick up whatever is current next, bridging gaps and reaping
// child processes along the way (spec.md §4.4). Grounded directly on
// internal/tuner/gateway.go's ffmpeg invocation and relay, restructured as
// an explicit state machine per spec.md §9.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"time"

	"github.com/jellystream/jellystream/internal/ffprobe"
	"github.com/jellystream/jellystream/internal/jellyfin"
	"github.com/jellystream/jellystream/internal/metrics"
	"github.com/jellystream/jellystream/internal/store"
)

// Sentinel errors the HTTP layer maps to status codes (spec.md §7).
var (
	ErrChannelDisabled       = errors.New("stream: channel disabled")
	ErrNoScheduleEntry       = errors.New("stream: nothing scheduled at this instant")
	ErrTranscoderUnavailable = errors.New("stream: ffmpeg binary not found")
)

// state is the explicit state machine Proxy.Stream runs per connection (spec.md §9: "tagged-variant
// Candidate type / explicit state machines over nested loops").
type state int

const (
	stateLookingForEntry state = iota
	stateTranscoding
	stateGapping
	stateFailing
)

const (
	defaultGapPollInterval = 5 * time.Second
	defaultChunkSize       = 64 * 1024
	reapPause              = 200 * time.Millisecond
	maxFailingSleep        = 30 * time.Second
)

// Proxy serves continuous per-channel MPEG-TS streams.
type Proxy struct {
	Store         store.Store
	Jellyfin      jellyfin.Client
	FFmpegPath    string // resolved once; empty means "not found"
	PreferredLang string

	GapPollInterval time.Duration
	ChunkSize       int
	Now             func() time.Time
}

// New returns a Proxy with ffmpeg resolved via exec.LookPath and the
// spec-default poll interval / chunk size.
func New(st store.Store, jf jellyfin.Client, preferredLang string) *Proxy {
	path, _ := exec.LookPath("ffmpeg")
	return &Proxy{
		Store:           st,
		Jellyfin:        jf,
		FFmpegPath:      path,
		PreferredLang:   preferredLang,
		GapPollInterval: defaultGapPollInterval,
		ChunkSize:       defaultChunkSize,
		Now:             time.Now,
	}
}

func (p *Proxy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Probe reports whether anything is scheduled for channelID right now,
// without spawning a transcoder (spec.md §4.4 "probe").
func (p *Proxy) Probe(ctx context.Context, channelID int64) (bool, error) {
	ch, err := p.Store.GetChannel(ctx, channelID)
	if err != nil {
		return false, err
	}
	if ch == nil || !ch.Enabled {
		return false, nil
	}
	entry, err := p.Store.CurrentScheduleEntry(ctx, channelID, p.now())
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// Stream runs the continuous generator for channelID, writing MPEG-TS bytes
// to w until ctx is cancelled (client disconnect) or an unrecoverable setup
// error occurs. The initial-call checks (disabled channel, no schedule
// entry, missing transcoder) are performed before any bytes are written so
// the HTTP layer can still choose a status code (spec.md §4.4).
func (p *Proxy) Stream(ctx context.Context, channelID int64, w io.Writer) error {
	ch, err := p.Store.GetChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if ch == nil || !ch.Enabled {
		return ErrChannelDisabled
	}
	if p.FFmpegPath == "" {
		return ErrTranscoderUnavailable
	}
	first, err := p.Store.CurrentScheduleEntry(ctx, channelID, p.now())
	if err != nil {
		return err
	}
	if first == nil {
		return ErrNoScheduleEntry
	}

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	st := stateLookingForEntry
	var entry *store.ScheduleEntry = first

	for {
		if ctx.Err() != nil {
			return nil
		}

		switch st {
		case stateLookingForEntry:
			if entry == nil {
				e, err := p.Store.CurrentScheduleEntry(ctx, channelID, p.now())
				if err != nil {
					st = stateFailing
					continue
				}
				entry = e
			}
			if entry == nil {
				st = stateGapping
				continue
			}
			st = stateTranscoding

		case stateGapping:
			entry = nil
			if !sleepCtx(ctx, p.GapPollInterval) {
				return nil
			}
			st = stateLookingForEntry

		case stateFailing:
			remaining := time.Duration(0)
			if entry != nil {
				remaining = entry.EndTime.Sub(p.now())
			}
			d := remaining
			if d <= 0 || d > maxFailingSleep {
				d = maxFailingSleep
			}
			if !sleepCtx(ctx, d) {
				return nil
			}
			entry = nil
			st = stateLookingForEntry

		case stateTranscoding:
			e := *entry
			offset := int(p.now().Sub(e.StartTime).Seconds())
			if offset < 0 {
				offset = 0
			}

			source, err := ResolveSource(ctx, p.Jellyfin, e)
			if err != nil {
				log.Printf("stream: channel=%d entry=%d resolve source: %v", channelID, e.ID, err)
				st = stateFailing
				continue
			}

			audioIdx, ok := ffprobe.PreferredAudioIndex(ctx, source, p.PreferredLang)
			if !ok {
				audioIdx = 0
			}

			proc, err := spawnTranscoder(ctx, p.FFmpegPath, source, offset, audioIdx)
			if err != nil {
				log.Printf("stream: channel=%d entry=%d spawn transcoder: %v", channelID, e.ID, err)
				st = stateFailing
				continue
			}
			metrics.TranscoderSpawns.WithLabelValues(fmt.Sprint(channelID)).Inc()

			_, copyErr := io.CopyBuffer(w, proc.stdout, make([]byte, p.ChunkSize))
			proc.kill() // idempotent
			waitErr := proc.wait()

			outcome := "clean"
			switch {
			case ctx.Err() != nil:
				outcome = "killed"
			case copyErr != nil || waitErr != nil:
				outcome = "error"
			}
			metrics.TranscoderExits.WithLabelValues(fmt.Sprint(channelID), outcome).Inc()

			if ctx.Err() != nil {
				return nil
			}

			if !sleepCtx(ctx, reapPause) {
				return nil
			}
			entry = nil
			st = stateLookingForEntry
		}
	}
}

// sleepCtx sleeps for d or until ctx is cancelled, reporting false in the
// latter case so callers can return immediately instead of looping once
// more.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
