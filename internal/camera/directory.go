// Package camera provides frame sources for the detection loop.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/dosewatch/internal/common"
	"github.com/Veraticus/dosewatch/internal/model"
)

// ErrNoFrames is returned when a directory holds no usable images.
var ErrNoFrames = errors.New("no image frames found")

// ErrNotOpen is returned by Next before Open or after Close.
var ErrNotOpen = errors.New("frame source is not open")

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// DirectorySource replays the images in a directory, in name order, looping
// back to the first after the last.
type DirectorySource struct {
	progressOut io.Writer
	progress    *progressbar.ProgressBar
	dir         string
	files       []string
	next        int
	seq         uint64
	open        bool
	mu          sync.Mutex
}

// Option configures a DirectorySource.
type Option func(*DirectorySource)

// WithProgress renders a replay progress bar to w, one pass at a time.
func WithProgress(w io.Writer) Option {
	return func(s *DirectorySource) {
		s.progressOut = w
	}
}

// NewDirectorySource creates a source over dir. Nothing is read until Open.
func NewDirectorySource(dir string, opts ...Option) *DirectorySource {
	s := &DirectorySource{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open lists the directory. Failures are *common.CameraAccessError.
func (s *DirectorySource) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return &common.CameraAccessError{
			Device:           s.dir,
			Err:              err,
			PermissionDenied: errors.Is(err, fs.ErrPermission),
		}
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := contentTypes[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return &common.CameraAccessError{Device: s.dir, Err: ErrNoFrames}
	}
	sort.Strings(files)

	s.files = files
	s.next = 0
	s.open = true
	s.startPass()

	slog.Debug("Opened frame directory", "dir", s.dir, "frames", len(files))
	return nil
}

// Next reads the next image.
func (s *DirectorySource) Next(ctx context.Context) (model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return model.Frame{}, ErrNotOpen
	}

	if s.next == len(s.files) {
		s.next = 0
		s.startPass()
	}
	path := s.files[s.next]
	s.next++

	data, err := os.ReadFile(path) //nolint:gosec // path comes from listing the configured directory
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return model.Frame{}, &common.CameraAccessError{Device: path, Err: err, PermissionDenied: true}
		}
		return model.Frame{}, fmt.Errorf("failed to read frame %s: %w", path, err)
	}

	if s.progress != nil {
		_ = s.progress.Add(1)
	}

	s.seq++
	return model.Frame{
		CapturedAt:  time.Now(),
		Source:      path,
		ContentType: contentTypes[strings.ToLower(filepath.Ext(path))],
		Data:        data,
		Sequence:    s.seq,
	}, nil
}

// Close releases the source. It is safe to call more than once.
func (s *DirectorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progress != nil {
		_ = s.progress.Close()
		s.progress = nil
	}
	s.open = false
	return nil
}

// Frames returns how many images one pass replays.
func (s *DirectorySource) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *DirectorySource) startPass() {
	if s.progressOut == nil {
		return
	}
	if s.progress != nil {
		_ = s.progress.Close()
	}
	s.progress = progressbar.NewOptions(len(s.files),
		progressbar.OptionSetWriter(s.progressOut),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Replaying frames...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
