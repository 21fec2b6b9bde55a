package detect

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/pose.report/internal/pose/l1detections"
)

// recordingExtensions are the files replay backends read.
var recordingExtensions = []string{".jsonl"}

// lineDecoder converts one recorded frame into candidates.
type lineDecoder func(line []byte) ([]l1detections.Candidate, error)

// jsonlSource replays one frame per non-blank line of a recording.
type jsonlSource struct {
	name   string
	f      *os.File
	r      *bufio.Reader
	decode lineDecoder
	frame  int
	line   int
}

func openJSONL(path string, decode lineDecoder) (*jsonlSource, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", l1detections.ErrVideoNotFound, path)
		}
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return &jsonlSource{name: path, f: f, r: bufio.NewReaderSize(f, 1<<20), decode: decode}, nil
}

// Next decodes the next recorded frame.
func (s *jsonlSource) Next(ctx context.Context) (l1detections.FrameDetections, error) {
	for {
		if err := ctx.Err(); err != nil {
			return l1detections.FrameDetections{}, err
		}
		line, err := s.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				diagf("%s: %d frames replayed", s.name, s.frame)
				return l1detections.FrameDetections{}, io.EOF
			}
			return l1detections.FrameDetections{}, fmt.Errorf("read %s: %w", s.name, err)
		}
		s.line++
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		cands, derr := s.decode(line)
		if derr != nil {
			return l1detections.FrameDetections{}, fmt.Errorf("%s line %d: %w", s.name, s.line, derr)
		}
		fd := l1detections.FrameDetections{Index: s.frame, Candidates: cands}
		s.frame++
		return fd, nil
	}
}

// Close closes the recording.
func (s *jsonlSource) Close() error {
	return s.f.Close()
}
