package container

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
)

// File is a container bound to a path on disk.
//
// A File returned by [Create] is writable: its tree becomes visible at the
// destination only after [File.Commit]. A File returned by [Open] is a
// read-only snapshot; Commit on it fails.
type File struct {
	path string
	root *Group
	opts Options

	tmp       *os.File
	writable  bool
	committed bool
	closed    bool
}

// Create starts a new container that will replace path on commit. The
// temporary file is created immediately so permission problems surface here
// rather than at commit time.
func Create(path string, opts Options) (*File, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	if _, err := ParseCompression(string(opts.Compression)); err != nil {
		return nil, err
	}
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmpPath := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &File{
		path:     path,
		root:     NewGroup(),
		opts:     opts,
		tmp:      tmp,
		writable: true,
	}, nil
}

// Open reads the committed container at path.
func Open(path string) (*File, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	root, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return &File{path: path, root: root}, nil
}

// Path returns the destination path.
func (f *File) Path() string { return f.path }

// Root returns the root group.
func (f *File) Root() *Group { return f.root }

// Commit encodes the tree, syncs it and atomically renames it into place.
func (f *File) Commit() error {
	if !f.writable {
		return errors.New(errors.ErrCodeUnsupported, "container %s is read-only", f.path)
	}
	if f.committed || f.closed {
		return errors.New(errors.ErrCodeInternal, "container %s already closed", f.path)
	}
	w := bufio.NewWriter(f.tmp)
	if err := Encode(w, f.root, f.opts); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.tmp.Sync(); err != nil {
		return err
	}
	if err := f.tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		return err
	}
	f.committed = true
	return nil
}

// Close releases the file. An uncommitted writable container is discarded:
// its temporary file is removed and the destination is left untouched.
// Close is idempotent.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if !f.writable || f.committed {
		return nil
	}
	name := f.tmp.Name()
	_ = f.tmp.Close()
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
