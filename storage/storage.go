package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/hobeone/epnamer/naming"
	"github.com/spf13/afero"
)

// ErrDestinationExists is returned by Rename instead of overwriting a file.
var ErrDestinationExists = errors.New("destination already exists")

var errStopWalk = errors.New("walk stopped")

// Broker is the interface between epnamer and the file system.
//
// The engine assumes it has the directory trees it works on to itself for
// the duration of a run.  Nothing guards against concurrent modification.
type Broker struct {
	Fs afero.Fs
	// MediaOnly restricts Walk to files naming.IsMediaFile accepts.
	MediaOnly bool
}

// NewBroker returns a pointer to a new Broker instance on the given
// filesystem.  A nil fs means the OS filesystem.
func NewBroker(fsys afero.Fs, options ...func(*Broker)) *Broker {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	b := &Broker{Fs: fsys}
	for _, option := range options {
		option(b)
	}
	return b
}

// SetMediaOnly sets if the Broker only walks media files.
//
// Example:
//
//	NewBroker(nil, SetMediaOnly(true))
func SetMediaOnly(mediaOnly bool) func(*Broker) {
	return func(b *Broker) {
		b.MediaOnly = mediaOnly
	}
}

func (b *Broker) lstat(path string) (os.FileInfo, error) {
	if l, ok := b.Fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return b.Fs.Stat(path)
}

func (b *Broker) wanted(path string, info os.FileInfo) bool {
	if !info.Mode().IsRegular() {
		return false
	}
	return !b.MediaOnly || naming.IsMediaFile(path)
}

// Walk lazily yields every regular file under the given roots.  A root may be
// a file or a directory; directories are descended recursively in lexical
// order, so the sequence is stable for a given filesystem state.  A root may
// itself be a symbolic link; links below a root are not followed.  Roots that
// don't exist yield nothing.
func (b *Broker) Walk(roots ...string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, root := range roots {
			info, err := b.Fs.Stat(root)
			if err != nil {
				if os.IsNotExist(err) {
					glog.V(1).Infof("Root %s does not exist, skipping", root)
				} else {
					glog.Warningf("Can't read root %s: %s", root, err)
				}
				continue
			}
			if !info.IsDir() {
				if b.wanted(root, info) && !yield(root) {
					return
				}
				continue
			}

			walkRoot := root
			if l, err := b.lstat(root); err == nil && l.Mode()&os.ModeSymlink != 0 {
				// A trailing separator makes lstat resolve the link.
				walkRoot = root + string(filepath.Separator)
			}
			err = afero.Walk(b.Fs, walkRoot, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					glog.Warningf("Error walking %s, skipping: %s", path, err)
					if info != nil && info.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if info.IsDir() || !b.wanted(path, info) {
					return nil
				}
				if !yield(path) {
					return errStopWalk
				}
				return nil
			})
			if errors.Is(err, errStopWalk) {
				return
			}
			if err != nil {
				glog.Warningf("Error walking %s: %s", root, err)
			}
		}
	}
}

// Files collects Walk into a slice.
func (b *Broker) Files(roots ...string) []string {
	var files []string
	for f := range b.Walk(roots...) {
		files = append(files, f)
	}
	return files
}

// Exists reports whether anything (file, directory or link) exists at path.
func (b *Broker) Exists(path string) bool {
	_, err := b.lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// Size returns the size of the file at path or 0 if it can't be read.
func (b *Broker) Size(path string) int64 {
	info, err := b.Fs.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Rename moves src to dst.  It never replaces an existing dst; the
// check and the rename are separate calls, so this relies on nothing else
// touching the directory during a run.
func (b *Broker) Rename(src, dst string) error {
	if b.Exists(dst) {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: ErrDestinationExists}
	}
	if err := b.Fs.Rename(src, dst); err != nil {
		return err
	}
	glog.Infof("Renamed %s to %s", src, dst)
	return nil
}

// Create creates (or truncates) the file at path for writing.
func (b *Broker) Create(path string) (afero.File, error) {
	f, err := b.Fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't create %s: %w", path, err)
	}
	return f, nil
}
