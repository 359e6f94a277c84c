package results

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/boristopalov/timetravel/pkg/messaging"
)

// TrajectoryWriter appends step events to a zstd compressed JSONL file.
type TrajectoryWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewTrajectoryWriter(path string) (*TrajectoryWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &TrajectoryWriter{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

func (t *TrajectoryWriter) Path() string {
	return t.path
}

func (t *TrajectoryWriter) Write(ev messaging.StepEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.w == nil {
		return fmt.Errorf("trajectory %s is closed", t.path)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := t.w.Write(b); err != nil {
		return err
	}
	return t.w.WriteByte('\n')
}

func (t *TrajectoryWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.w == nil {
		return nil
	}
	errFlush := t.w.Flush()
	errEnc := t.enc.Close()
	errFile := t.f.Close()
	t.w, t.enc, t.f = nil, nil, nil
	return errors.Join(errFlush, errEnc, errFile)
}

// ReadTrajectory decodes every step event of a trajectory file.
func ReadTrajectory(path string) ([]messaging.StepEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return decodeSteps(dec)
}

func decodeSteps(r io.Reader) ([]messaging.StepEvent, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var out []messaging.StepEvent
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var ev messaging.StepEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, ev)
	}
	return out, sc.Err()
}
