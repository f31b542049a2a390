package ffmpeg

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"transcoding_service/pkg/config"
	"transcoding_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "01:02:03", want: 3723},
		{in: "00:00:00", want: 0},
		{in: "1:02:03", want: 3723},
		{in: "00:00:10.57", want: 10},
		{in: "10:00:00.00", want: 36000},
		{in: "123:00:01", want: 442801},
		{in: "N/A", wantErr: true},
		{in: "", wantErr: true},
		{in: "00:61:00", wantErr: true},
		{in: "00:00:60", wantErr: true},
		{in: "-00:00:05", wantErr: true},
		{in: "00:5", wantErr: true},
		{in: "aa:bb:cc", wantErr: true},
		{in: "00:00:01.x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTimecode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(10, 0))
	assert.Equal(t, 0.0, Percent(0, 100))
	assert.Equal(t, 50.0, Percent(50, 100))
	assert.Equal(t, 100.0, Percent(120, 100))
	assert.Equal(t, 0.0, Percent(-5, 100))

	// 時間碼遞增時百分比不會下降
	last := 0.0
	for cur := 0; cur <= 200; cur += 7 {
		p := Percent(cur, 180)
		assert.GreaterOrEqual(t, p, last)
		last = p
	}
}

const sampleStderr = `ffmpeg version 6.0 Copyright (c) 2000-2023 the FFmpeg developers
Input #0, mov,mp4,m4a,3gp,3g2,mj2, from '/tmp/abc.mp4':
  Metadata:
    major_brand     : isom
  Duration: 00:00:10.00, start: 0.000000, bitrate: 1205 kb/s
  Stream #0:0[0x1](und): Video: h264 (High) (avc1 / 0x31637661), yuv420p(progressive), 1280x720, 1069 kb/s, 30 fps
  Stream #0:1[0x2](und): Audio: aac (LC) (mp4a / 0x6134706D), 44100 Hz, stereo, fltp, 128 kb/s
Stream mapping:
  Stream #0:0 -> #0:0 (h264 (native) -> vp8 (libvpx))
Output #0, webm, to 'files/sample.webm.part':
frame=   45 fps= 30 q=0.0 size=     256kB time=00:00:01.50 bitrate=1398.1kbits/s speed=1.0x
frame=  150 fps= 30 q=0.0 Lsize=    1024kB time=00:00:05.00 bitrate=1677.7kbits/s speed=1.0x`

func TestParserEmitsCodecDataThenProgress(t *testing.T) {
	var p Parser
	var events []Event
	for _, line := range strings.Split(sampleStderr, "\n") {
		events = append(events, p.Feed(line)...)
	}

	require.Len(t, events, 3)
	codec, ok := events[0].(CodecData)
	require.True(t, ok)
	assert.Equal(t, "mov,mp4,m4a,3gp,3g2,mj2", codec.Format)
	assert.Equal(t, "00:00:10.00", codec.Duration)
	assert.Equal(t, "h264 (High) (avc1 / 0x31637661)", codec.Video)
	assert.Equal(t, "aac (LC) (mp4a / 0x6134706D)", codec.Audio)
	assert.Contains(t, codec.AudioDetails, "44100 Hz")

	first, ok := events[1].(Progress)
	require.True(t, ok)
	assert.Equal(t, int64(45), first.Frames)
	assert.Equal(t, 30.0, first.FPS)
	assert.Equal(t, int64(256), first.TargetSize)
	assert.Equal(t, 1398.1, first.Kbps)
	assert.Equal(t, "00:00:01.50", first.Timemark)

	last := events[2].(Progress)
	assert.Equal(t, "00:00:05.00", last.Timemark)
	assert.Equal(t, int64(1024), last.TargetSize)
}

func TestParserCodecDataBeforeFirstProgressWithoutOutputLine(t *testing.T) {
	var p Parser
	assert.Empty(t, p.Feed("Input #0, matroska,webm, from 'x.mkv':"))
	assert.Empty(t, p.Feed("  Duration: 00:01:00.00, start: 0.000000, bitrate: 900 kb/s"))

	events := p.Feed("frame=1 fps=0.0 size=0kB time=00:00:00.04 bitrate=0.0kbits/s")
	require.Len(t, events, 2)
	assert.IsType(t, CodecData{}, events[0])
	assert.IsType(t, Progress{}, events[1])

	// 只送一次
	events = p.Feed("frame=2 fps=0.0 size=0kB time=00:00:00.08 bitrate=0.0kbits/s")
	require.Len(t, events, 1)
}

func TestParserIgnoresNoise(t *testing.T) {
	var p Parser
	assert.Empty(t, p.Feed(""))
	assert.Empty(t, p.Feed("[libvpx @ 0x55] v1.13.0"))
	assert.Empty(t, p.Feed("Press [q] to stop, [?] for help"))
	// 沒有 duration 的 progress 不帶 codec data
	events := p.Feed("frame=1 fps=0.0 size=0kB time=00:00:00.04 bitrate=0.0kbits/s")
	require.Len(t, events, 1)
	assert.IsType(t, Progress{}, events[0])
}

func TestScanLinesSplitsCarriageReturns(t *testing.T) {
	data := []byte("a\rb\nc")
	var tokens []string
	for len(data) > 0 {
		adv, tok, err := scanLines(data, true)
		require.NoError(t, err)
		tokens = append(tokens, string(tok))
		data = data[adv:]
	}
	assert.Equal(t, []string{"a", "b", "c"}, tokens)
}

func TestTail(t *testing.T) {
	tl := newTail(3)
	tl.add("1")
	tl.add("2")
	assert.Equal(t, "1\n2", tl.String())
	tl.add("3")
	tl.add("4")
	assert.Equal(t, "2\n3\n4", tl.String())
}

func TestBuildArgs(t *testing.T) {
	cfg := config.FFmpegConfig{
		VideoCodec:    "libvpx",
		AudioCodec:    "libvorbis",
		Format:        "webm",
		AudioBitrate:  "128k",
		VideoBitrate:  "1024k",
		OutputOptions: []string{"-crf 17", "-error-resilient 1", "-deadline good", "-cpu-used 2"},
	}
	args := BuildArgs(cfg, "/tmp/in.mp4", "files/out.webm.part")
	assert.Equal(t, []string{
		"-i", "/tmp/in.mp4", "-y",
		"-acodec", "libvorbis", "-vcodec", "libvpx",
		"-b:a", "128k", "-b:v", "1024k", "-f", "webm",
		"-crf", "17", "-error-resilient", "1", "-deadline", "good", "-cpu-used", "2",
		"files/out.webm.part",
	}, args)
}

// fakeBinary writes a shell script standing in for ffmpeg
func fakeBinary(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script runner")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func collect(t *testing.T, p Process) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-p.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("process did not finish")
		}
	}
}

func TestRunnerSuccess(t *testing.T) {
	logger.SetNewNop()
	bin := fakeBinary(t, `
echo "Input #0, mov,mp4, from 'in.mp4':" >&2
echo "  Duration: 00:00:02.00, start: 0.000000" >&2
echo "Output #0, webm, to 'out':" >&2
printf "frame=1 time=00:00:01.00 bitrate=1.0kbits/s\rframe=2 time=00:00:02.00 bitrate=1.0kbits/s\n" >&2
exit 0
`)
	r := NewRunner(config.FFmpegConfig{Binary: bin})
	p, err := r.Start(context.Background(), "in.mp4", "out")
	require.NoError(t, err)

	events := collect(t, p)
	require.Len(t, events, 5)
	start := events[0].(Start)
	assert.True(t, strings.HasPrefix(start.CommandLine, bin+" -i in.mp4 -y"))
	assert.IsType(t, CodecData{}, events[1])
	assert.Equal(t, "00:00:01.00", events[2].(Progress).Timemark)
	assert.Equal(t, "00:00:02.00", events[3].(Progress).Timemark)
	assert.IsType(t, End{}, events[4])
}

func TestRunnerFailureCarriesStderr(t *testing.T) {
	logger.SetNewNop()
	bin := fakeBinary(t, `
echo "in.mp4: Invalid data found when processing input" >&2
exit 3
`)
	p, err := NewRunner(config.FFmpegConfig{Binary: bin}).Start(context.Background(), "in.mp4", "out")
	require.NoError(t, err)

	events := collect(t, p)
	require.Len(t, events, 2)
	failure, ok := events[1].(Failure)
	require.True(t, ok)
	assert.Equal(t, 3, failure.ExitCode)
	assert.Contains(t, failure.Stderr, "Invalid data found")
	assert.Error(t, failure.Err)
}

func TestRunnerOverlongStderrLine(t *testing.T) {
	logger.SetNewNop()
	// 超過 scanner 上限的一行之後還有超過 pipe buffer 的輸出
	bin := fakeBinary(t, `
head -c 1200000 /dev/zero | tr '\0' 'x' >&2
head -c 300000 /dev/zero | tr '\0' 'y' >&2
exit 0
`)
	p, err := NewRunner(config.FFmpegConfig{Binary: bin}).Start(context.Background(), "in.mp4", "out")
	require.NoError(t, err)

	events := collect(t, p)
	require.Len(t, events, 2)
	failure, ok := events[1].(Failure)
	require.True(t, ok)
	assert.ErrorIs(t, failure.Err, bufio.ErrTooLong)
}

func TestRunnerKill(t *testing.T) {
	logger.SetNewNop()
	bin := fakeBinary(t, `
echo "Input #0, mov, from 'in.mp4':" >&2
exec sleep 30
`)
	p, err := NewRunner(config.FFmpegConfig{Binary: bin}).Start(context.Background(), "in.mp4", "out")
	require.NoError(t, err)

	<-p.Events() // Start
	require.NoError(t, p.Kill())
	require.NoError(t, p.Kill())

	events := collect(t, p)
	require.NotEmpty(t, events)
	assert.IsType(t, Failure{}, events[len(events)-1])
}

func TestRunnerMissingBinary(t *testing.T) {
	_, err := NewRunner(config.FFmpegConfig{Binary: filepath.Join(t.TempDir(), "nope")}).Start(context.Background(), "a", "b")
	assert.Error(t, err)
}
