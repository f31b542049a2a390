package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"transcoding_service/pkg/config"
	"transcoding_service/pkg/logger"

	"go.uber.org/zap"
)

const stderrTailLines = 30

// Process a running transcode subprocess
type Process interface {
	// Events is closed after the final End or Failure event
	Events() <-chan Event
	Kill() error
}

// Runner starts transcode subprocesses
type Runner interface {
	Start(ctx context.Context, input, output string) (Process, error)
}

type ffmpegRunner struct {
	cfg config.FFmpegConfig
}

// NewRunner create Runner executing the ffmpeg binary
func NewRunner(cfg config.FFmpegConfig) Runner {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	return &ffmpegRunner{cfg: cfg}
}

// BuildArgs ffmpeg arguments for one transcode, output is overwritten
func BuildArgs(cfg config.FFmpegConfig, input, output string) []string {
	args := []string{"-i", input, "-y"}
	if cfg.AudioCodec != "" {
		args = append(args, "-acodec", cfg.AudioCodec)
	}
	if cfg.VideoCodec != "" {
		args = append(args, "-vcodec", cfg.VideoCodec)
	}
	if cfg.AudioBitrate != "" {
		args = append(args, "-b:a", cfg.AudioBitrate)
	}
	if cfg.VideoBitrate != "" {
		args = append(args, "-b:v", cfg.VideoBitrate)
	}
	if cfg.Format != "" {
		args = append(args, "-f", cfg.Format)
	}
	// "-crf 17" 形式的選項拆成兩個參數
	for _, opt := range cfg.OutputOptions {
		args = append(args, strings.Fields(opt)...)
	}
	return append(args, output)
}

func (r *ffmpegRunner) Start(ctx context.Context, input, output string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	args := BuildArgs(r.cfg, input, output)
	// 不用 CommandContext: 終止由 coordinator 透過 Kill 決定
	cmd := exec.Command(r.cfg.Binary, args...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.cfg.Binary, err)
	}

	p := &process{
		cmd:    cmd,
		events: make(chan Event, 16),
	}
	commandLine := r.cfg.Binary + " " + strings.Join(args, " ")
	logger.Log.Debug("ffmpeg started", zap.String("cmd", commandLine), zap.Int("pid", cmd.Process.Pid))

	go p.run(commandLine, stderr)
	return p, nil
}

type process struct {
	cmd      *exec.Cmd
	events   chan Event
	killOnce sync.Once
	killErr  error
}

func (p *process) Events() <-chan Event { return p.events }

func (p *process) Kill() error {
	p.killOnce.Do(func() {
		if p.cmd.Process == nil {
			return
		}
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.killErr = err
		}
	})
	return p.killErr
}

func (p *process) run(commandLine string, stderr io.Reader) {
	defer close(p.events)
	p.events <- Start{CommandLine: commandLine}

	var parser Parser
	lines := newTail(stderrTailLines)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines.add(line)
		for _, ev := range parser.Feed(line) {
			p.events <- ev
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// scanner 停了也要讀完 stderr, 否則 ffmpeg 寫滿 pipe 後 Wait 不會返回
		io.Copy(io.Discard, stderr) //nolint:errcheck
	}

	waitErr := p.cmd.Wait()
	if waitErr == nil && scanErr == nil {
		p.events <- End{}
		return
	}

	failure := Failure{Err: waitErr, ExitCode: -1, Stderr: lines.String()}
	if waitErr == nil {
		failure.Err = fmt.Errorf("read stderr: %w", scanErr)
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		failure.ExitCode = exitErr.ExitCode()
	}
	p.events <- failure
}
