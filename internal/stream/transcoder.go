package stream

import (
	"context"
	"io"
	"os/exec"
	"strconv"
)

// buildFFmpegArgs constructs the ffmpeg argument list for one programme:
// seek to offsetSeconds into source, map video and the chosen audio track,
// scale to 1080p preserving aspect, encode H.264 (veryfast, zerolatency,
// CRF 20, maxrate 8000k, bufsize 4000k) + AAC (192k stereo), emit MPEG-TS to
// stdout. The codec-flag values are lifted from the teacher's
// buildFFmpegMPEGTSCodecArgs, narrowed to spec.md §4.4's single fixed
// profile (no per-channel transcode-mode selection).
func buildFFmpegArgs(source string, offsetSeconds int, audioIndex int) []string {
	args := []string{
		"-v", "error",
		"-nostdin",
	}
	if offsetSeconds > 0 {
		args = append(args, "-ss", strconv.Itoa(offsetSeconds))
	}
	args = append(args, "-i", source)
	args = append(args,
		"-map", "0:v:0",
		"-map", "0:a:"+strconv.Itoa(audioIndex)+"?",
		"-sn", "-dn",
		"-vf", "scale='min(1920,iw)':-2",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "zerolatency",
		"-crf", "20",
		"-maxrate", "8000k",
		"-bufsize", "4000k",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ac", "2",
		"-f", "mpegts",
		"pipe:1",
	)
	return args
}

// transcoderProcess wraps a running ffmpeg child process and its stdout
// pipe, grounded on the teacher's exec.CommandContext + cmd.StdoutPipe()
// pattern in internal/tuner/gateway.go.
type transcoderProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func spawnTranscoder(ctx context.Context, ffmpegPath, source string, offsetSeconds, audioIndex int) (*transcoderProcess, error) {
	args := buildFFmpegArgs(source, offsetSeconds, audioIndex)
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &transcoderProcess{cmd: cmd, stdout: stdout}, nil
}

// kill terminates the child process; idempotent, matching spec.md §4.4
// "kill it (idempotent)".
func (p *transcoderProcess) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// wait reaps the process. Call after the stdout relay has finished reading.
func (p *transcoderProcess) wait() error {
	return p.cmd.Wait()
}
