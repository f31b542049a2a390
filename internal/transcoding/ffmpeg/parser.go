package ffmpeg

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

var (
	inputRe    = regexp.MustCompile(`^Input #\d+, ([^ ]+), from`)
	durationRe = regexp.MustCompile(`Duration: ([^,]+)`)
	streamRe   = regexp.MustCompile(`Stream #\d+[:.]\d+.*?: (Audio|Video): (.*)`)
	keyValueRe = regexp.MustCompile(`(\w+)=\s*(\S+)`)
)

// Parser turns ffmpeg stderr lines into events.
// Not safe for concurrent use; one parser per subprocess.
type Parser struct {
	codec       CodecData
	inInput     bool
	codecSent   bool
	sawDuration bool
}

// Feed parse one stderr line
func (p *Parser) Feed(line string) []Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if m := inputRe.FindStringSubmatch(line); m != nil {
		p.inInput = true
		p.codec.Format = m[1]
		return nil
	}

	if strings.HasPrefix(line, "Output #") {
		p.inInput = false
		return p.flushCodec(nil)
	}

	if p.inInput && !p.codecSent {
		if m := durationRe.FindStringSubmatch(line); m != nil {
			p.codec.Duration = strings.TrimSpace(m[1])
			p.sawDuration = true
			return nil
		}
		if m := streamRe.FindStringSubmatch(line); m != nil {
			details := splitDetails(m[2])
			if m[1] == "Audio" && p.codec.Audio == "" {
				p.codec.Audio, p.codec.AudioDetails = details[0], details
			}
			if m[1] == "Video" && p.codec.Video == "" {
				p.codec.Video, p.codec.VideoDetails = details[0], details
			}
			return nil
		}
	}

	if progress, ok := parseProgress(line); ok {
		// 沒看到 Output 行時在第一個進度前補發 codec data
		return p.flushCodec([]Event{progress})
	}
	return nil
}

func (p *Parser) flushCodec(tail []Event) []Event {
	if p.codecSent || !p.sawDuration {
		return tail
	}
	p.codecSent = true
	return append([]Event{p.codec}, tail...)
}

func splitDetails(s string) []string {
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, d := range raw {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = append(out, "")
	}
	return out
}

func parseProgress(line string) (Progress, bool) {
	matches := keyValueRe.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return Progress{}, false
	}
	var pr Progress
	hasTime := false
	for _, m := range matches {
		key, value := m[1], m[2]
		switch key {
		case "frame":
			pr.Frames, _ = strconv.ParseInt(value, 10, 64)
		case "fps":
			pr.FPS, _ = strconv.ParseFloat(value, 64)
		case "bitrate":
			pr.Kbps, _ = strconv.ParseFloat(strings.TrimSuffix(value, "kbits/s"), 64)
		case "size", "Lsize":
			pr.TargetSize, _ = strconv.ParseInt(strings.TrimSuffix(strings.TrimSuffix(value, "kB"), "KiB"), 10, 64)
		case "time":
			pr.Timemark = value
			hasTime = true
		}
	}
	return pr, hasTime
}

// scanLines splits on \n and on the \r ffmpeg uses to redraw its status line
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tail keeps the last n lines written by the subprocess
type tail struct {
	lines []string
	next  int
	full  bool
}

func newTail(n int) *tail {
	return &tail{lines: make([]string, n)}
}

func (t *tail) add(line string) {
	if len(t.lines) == 0 {
		return
	}
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.full = true
	}
}

func (t *tail) String() string {
	var ordered []string
	if t.full {
		ordered = append(ordered, t.lines[t.next:]...)
	}
	ordered = append(ordered, t.lines[:t.next]...)
	return strings.Join(ordered, "\n")
}
