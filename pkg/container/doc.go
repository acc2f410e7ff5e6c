// Package container implements the hierarchical binary store the persistence
// engine writes into.
//
// # Overview
//
// A container is a tree of named [Group]s. A group holds named [Dataset]s,
// nested groups and string attributes. Datasets are typed, fixed-shape arrays:
//
//   - float64 and int64: 8-byte little-endian, native numeric encoding
//   - bool: one byte per element
//   - string: fixed-width byte strings, NUL padded to the longest element
//
// Each dataset's payload is compressed on disk with the configured
// [Compression] (gzip by default, or zstd, or none).
//
// # File Format
//
//	"LGCC" | version (1 byte) | msgpack(tree)
//
// Groups, datasets and attributes are stored as slices sorted by name rather
// than as maps, so saving the same value twice produces identical bytes.
//
// # Atomicity
//
// [Create] writes into a temporary file next to the destination. Nothing is
// visible at the destination path until [File.Commit] renames it into place;
// [File.Close] on an uncommitted file removes the temporary file. The usual
// pattern releases the file on every exit path:
//
//	f, err := container.Create(path, container.Options{})
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	// ... populate f.Root() ...
//	return f.Commit()
//
// # Concurrency
//
// Groups and datasets are not safe for concurrent mutation. A container file
// supports a single writer; readers should open it only after the writer has
// committed.
package container
