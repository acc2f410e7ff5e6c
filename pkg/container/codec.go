package container

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
)

// Compression selects the per-dataset payload filter.
type Compression string

// Supported compression filters.
const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// DefaultCompression is used when Options.Compression is empty.
const DefaultCompression = CompressionGzip

// ParseCompression validates a compression name. The empty string selects
// [DefaultCompression].
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case "":
		return DefaultCompression, nil
	case CompressionNone, CompressionGzip, CompressionZstd:
		return c, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidInput, "unknown compression %q (want none, gzip or zstd)", s)
	}
}

// Options configures how a container is encoded.
type Options struct {
	Compression Compression
}

func (o Options) compression() Compression {
	if o.Compression == "" {
		return DefaultCompression
	}
	return o.Compression
}

var magic = []byte("LGCC")

// formatVersion is bumped when the wire layout changes incompatibly.
const formatVersion = 2

// The wire tree stores every named collection as a slice sorted by name, so
// the same tree always encodes to the same bytes.
type wireGroup struct {
	Name     string        `msgpack:"name,omitempty"`
	Attrs    []wireAttr    `msgpack:"attrs,omitempty"`
	Groups   []wireGroup   `msgpack:"groups,omitempty"`
	Datasets []wireDataset `msgpack:"datasets,omitempty"`
}

type wireDataset struct {
	Name   string      `msgpack:"name"`
	DType  DType       `msgpack:"dtype"`
	Shape  []int       `msgpack:"shape"`
	Width  int         `msgpack:"width"`
	Filter Compression `msgpack:"filter"`
	Data   []byte      `msgpack:"data"`
	Attrs  []wireAttr  `msgpack:"attrs,omitempty"`
}

type wireAttr struct {
	Key   string `msgpack:"k"`
	Value string `msgpack:"v"`
}

// Encode writes the tree rooted at root to w.
func Encode(w io.Writer, root *Group, opts Options) error {
	wire, err := toWire("", root, opts.compression())
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic); err != nil {
		return err
	}
	if err := bw.WriteByte(formatVersion); err != nil {
		return err
	}
	if err := msgpack.NewEncoder(bw).Encode(&wire); err != nil {
		return fmt.Errorf("encode container: %w", err)
	}
	return bw.Flush()
}

// Decode reads a tree previously written by [Encode].
func Decode(r io.Reader) (*Group, error) {
	br := bufio.NewReader(r)
	header := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "read container header")
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return nil, errors.New(errors.ErrCodeFormat, "not a container (bad magic %q)", header[:len(magic)])
	}
	if v := header[len(magic)]; v != formatVersion {
		return nil, errors.New(errors.ErrCodeFormat, "unsupported container version %d", v)
	}
	var wire wireGroup
	if err := msgpack.NewDecoder(br).Decode(&wire); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "decode container")
	}
	return fromWire(wire, "/")
}

func toWire(name string, g *Group, c Compression) (wireGroup, error) {
	out := wireGroup{Name: name, Attrs: toWireAttrs(g.attrs)}
	for _, child := range sortedKeys(g.groups) {
		w, err := toWire(child, g.groups[child], c)
		if err != nil {
			return wireGroup{}, err
		}
		out.Groups = append(out.Groups, w)
	}
	for _, dname := range sortedKeys(g.datasets) {
		ds := g.datasets[dname]
		data, err := compress(c, ds.data)
		if err != nil {
			return wireGroup{}, fmt.Errorf("compress dataset %q: %w", dname, err)
		}
		out.Datasets = append(out.Datasets, wireDataset{
			Name:   dname,
			DType:  ds.DType,
			Shape:  ds.Shape,
			Width:  ds.Width,
			Filter: c,
			Data:   data,
			Attrs:  toWireAttrs(ds.attrs),
		})
	}
	return out, nil
}

func fromWire(w wireGroup, path string) (*Group, error) {
	g := NewGroup()
	attrs, err := fromWireAttrs(w.Attrs)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "group %s", path)
	}
	g.attrs = attrs
	for _, child := range w.Groups {
		if _, dup := g.groups[child.Name]; dup || child.Name == "" {
			return nil, errors.New(errors.ErrCodeFormat, "%s: bad or repeated group name %q", path, child.Name)
		}
		cg, err := fromWire(child, path+child.Name+"/")
		if err != nil {
			return nil, err
		}
		g.groups[child.Name] = cg
	}
	for _, wd := range w.Datasets {
		name := wd.Name
		if _, dup := g.datasets[name]; dup || name == "" {
			return nil, errors.New(errors.ErrCodeFormat, "%s: bad or repeated dataset name %q", path, name)
		}
		if _, dup := g.groups[name]; dup {
			return nil, errors.New(errors.ErrCodeFormat, "%s%s is both a group and a dataset", path, name)
		}
		data, err := decompress(wd.Filter, wd.Data)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFormat, err, "dataset %s%s", path, name)
		}
		dattrs, err := fromWireAttrs(wd.Attrs)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFormat, err, "dataset %s%s", path, name)
		}
		ds := &Dataset{DType: wd.DType, Shape: wd.Shape, Width: wd.Width, data: data, attrs: dattrs}
		if err := ds.validate(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFormat, err, "dataset %s%s", path, name)
		}
		g.datasets[name] = ds
	}
	return g, nil
}

func toWireAttrs(m map[string]string) []wireAttr {
	if len(m) == 0 {
		return nil
	}
	out := make([]wireAttr, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, wireAttr{Key: k, Value: m[k]})
	}
	return out
}

func fromWireAttrs(attrs []wireAttr) (map[string]string, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if _, dup := m[a.Key]; dup {
			return nil, fmt.Errorf("repeated attribute %q", a.Key)
		}
		m[a.Key] = a.Value
	}
	return m, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}

func decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}
