package livesession

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/imageutil"
)

// ErrNoFrames is returned by a source that has nothing to capture.
var ErrNoFrames = errors.New("no frames available")

// FrameSource produces the next captured frame.
type FrameSource interface {
	Next() (image.Image, error)
}

// SourceFunc adapts a function to FrameSource.
type SourceFunc func() (image.Image, error)

// Next calls f.
func (f SourceFunc) Next() (image.Image, error) { return f() }

// DirSource cycles through the images of a directory in name order.
type DirSource struct {
	mu    sync.Mutex
	files []string
	next  int
}

// NewDirSource lists the image files in dir. Non-image files are skipped.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read frame %s: %w", entry.Name(), err)
		}
		if imageutil.IsImage(data) {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoFrames)
	}
	sort.Strings(files)
	return &DirSource{files: files}, nil
}

// Len returns the number of frames in the cycle.
func (d *DirSource) Len() int {
	return len(d.files)
}

// Next decodes the next file, wrapping around at the end.
func (d *DirSource) Next() (image.Image, error) {
	d.mu.Lock()
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.mu.Unlock()

	return decodeFile(path)
}

// FileSource repeats a single image.
type FileSource struct {
	img image.Image
}

// NewFileSource decodes the image once.
func NewFileSource(path string) (*FileSource, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{img: img}, nil
}

// Next returns the same image every time.
func (f *FileSource) Next() (image.Image, error) {
	return f.img, nil
}

// OpenSource returns a DirSource for a directory and a FileSource otherwise.
func OpenSource(path string) (FrameSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open frame source: %w", err)
	}
	if info.IsDir() {
		return NewDirSource(path)
	}
	return NewFileSource(path)
}

func decodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
