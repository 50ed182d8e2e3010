package hnsw

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/renameio"
	natomic "github.com/natefinch/atomic"
)

var byteOrder = binary.LittleEndian

// binaryRead mirrors the teacher's variant-width reader: ints are varint
// encoded, strings and float32 slices are length-prefixed.
func binaryRead(r io.Reader, data interface{}) error {
	switch v := data.(type) {
	case *int:
		br, ok := r.(io.ByteReader)
		if !ok {
			br = bufio.NewReader(r)
		}
		i, err := binary.ReadVarint(br)
		if err != nil {
			return err
		}
		*v = int(i)
		return nil

	case *uint64:
		br, ok := r.(io.ByteReader)
		if !ok {
			br = bufio.NewReader(r)
		}
		i, err := binary.ReadUvarint(br)
		if err != nil {
			return err
		}
		*v = i
		return nil

	case *string:
		var ln int
		if err := binaryRead(r, &ln); err != nil {
			return err
		}
		buf := make([]byte, ln)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		*v = string(buf)
		return nil

	case *[]float32:
		var ln int
		if err := binaryRead(r, &ln); err != nil {
			return err
		}
		*v = make([]float32, ln)
		return binary.Read(r, byteOrder, *v)

	default:
		return binary.Read(r, byteOrder, data)
	}
}

func binaryWrite(w io.Writer, data any) error {
	switch v := data.(type) {
	case int:
		var buf [binary.MaxVarintLen64]byte
		n := binary.PutVarint(buf[:], int64(v))
		_, err := w.Write(buf[:n])
		return err
	case uint64:
		var buf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(buf[:], v)
		_, err := w.Write(buf[:n])
		return err
	case string:
		if err := binaryWrite(w, len(v)); err != nil {
			return err
		}
		_, err := io.WriteString(w, v)
		return err
	case []float32:
		if err := binaryWrite(w, len(v)); err != nil {
			return err
		}
		return binary.Write(w, byteOrder, v)
	default:
		return binary.Write(w, byteOrder, data)
	}
}

func multiBinaryWrite(w io.Writer, data ...any) error {
	for _, d := range data {
		if err := binaryWrite(w, d); err != nil {
			return err
		}
	}
	return nil
}

func multiBinaryRead(r io.Reader, data ...any) error {
	for i, d := range data {
		if err := binaryRead(r, d); err != nil {
			return fmt.Errorf("reading %T at index %d: %w", d, i, err)
		}
	}
	return nil
}

const snapshotVersion = 1

// Export writes a binary snapshot of the index to w. Only active (non
// tombstoned) nodes are written; node ids are remapped densely in arena
// order so the exported stream never reveals arena gaps left by
// deletions.
func (ix *Index) Export(w io.Writer) error {
	distName, ok := distanceFuncToName(ix.graph.Distance)
	if !ok {
		return &SerializeError{Message: fmt.Sprintf("distance function %v is not registered with RegisterDistanceFunc", ix.graph.Distance)}
	}

	g := ix.graph
	active := make([]NodeID, 0, g.active)
	for idx, n := range g.nodes {
		if !n.isDeleted() {
			active = append(active, NodeID(idx))
		}
	}

	remap := make(map[NodeID]int, len(active))
	for newID, old := range active {
		remap[old] = newID
	}

	err := multiBinaryWrite(w,
		snapshotVersion,
		ix.Dims,
		ix.M,
		ix.Efc,
		ix.Ef,
		distName,
		len(active),
	)
	if err != nil {
		return &SerializeError{Message: "writing header", Err: err}
	}

	for _, old := range active {
		n := g.nodes[old]
		if err := multiBinaryWrite(w, n.extID, n.vec, n.lastHit.Load(), len(n.links)); err != nil {
			return &SerializeError{Message: "writing node", Err: err}
		}
		for l, layerLinks := range n.links {
			out := make([]int, 0, len(layerLinks))
			for _, nb := range layerLinks {
				if remapped, ok := remap[nb]; ok {
					out = append(out, remapped)
				}
			}
			if err := binaryWrite(w, len(out)); err != nil {
				return &SerializeError{Message: fmt.Sprintf("writing layer %d length", l), Err: err}
			}
			for _, nb := range out {
				if err := binaryWrite(w, nb); err != nil {
					return &SerializeError{Message: fmt.Sprintf("writing layer %d neighbor", l), Err: err}
				}
			}
		}
	}

	return nil
}

// Import replaces the index's contents with a snapshot previously written
// by Export, and returns the same *Index for convenience chaining. The
// imported graph does not need to match the current index's tuning
// parameters; they are overwritten from the stream, with a zero efc
// falling back to max(ef, 1). Every vector's length is checked against
// the declared dims before anything is linked together. After loading,
// Import always runs Sanitize over the freshly built graph and logs a
// line reporting what it found, since a snapshot may have been produced
// or hand-edited outside this process.
func (ix *Index) Import(r io.Reader) (*Index, error) {
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}

	var (
		version  int
		dims     int
		m        int
		efc      int
		ef       int
		distName string
		nNodes   int
	)
	err := multiBinaryRead(r, &version, &dims, &m, &efc, &ef, &distName, &nNodes)
	if err != nil {
		return nil, &SerializeError{Message: "reading header", Err: err}
	}
	if version != snapshotVersion {
		return nil, &SerializeError{Message: fmt.Sprintf("incompatible snapshot version %d", version)}
	}
	if efc <= 0 {
		efc = maxInt(ef, 1)
	}

	dist, ok := distanceFuncs[distName]
	if !ok {
		return nil, &SerializeError{Message: fmt.Sprintf("unknown distance function %q", distName)}
	}

	g := NewGraph(m, efc, dist)
	g.dims = dims

	type rawNode struct {
		extID   uint64
		vec     []float32
		lastHit uint64
		links   [][]NodeID
	}
	raw := make([]rawNode, nNodes)

	for i := 0; i < nNodes; i++ {
		var (
			extID   uint64
			vec     []float32
			lastHit uint64
			nLayers int
		)
		if err := multiBinaryRead(r, &extID, &vec, &lastHit, &nLayers); err != nil {
			return nil, &SerializeError{Message: fmt.Sprintf("reading node %d", i), Err: err}
		}
		if len(vec) != dims {
			return nil, &DimensionMismatchError{Expected: dims, Found: len(vec)}
		}

		links := make([][]NodeID, nLayers)
		for l := 0; l < nLayers; l++ {
			var nNeighbors int
			if err := binaryRead(r, &nNeighbors); err != nil {
				return nil, &SerializeError{Message: fmt.Sprintf("reading node %d layer %d length", i, l), Err: err}
			}
			layerLinks := make([]NodeID, nNeighbors)
			for k := 0; k < nNeighbors; k++ {
				var nb int
				if err := binaryRead(r, &nb); err != nil {
					return nil, &SerializeError{Message: fmt.Sprintf("reading node %d layer %d neighbor %d", i, l, k), Err: err}
				}
				layerLinks[k] = NodeID(nb)
			}
			links[l] = layerLinks
		}

		raw[i] = rawNode{extID: extID, vec: vec, lastHit: lastHit, links: links}
	}

	g.nodes = make([]*node, nNodes)
	for i, rn := range raw {
		n := &node{extID: rn.extID, vec: rn.vec, links: rn.links}
		n.lastHit.Store(rn.lastHit)
		n.touchBytes()
		g.nodes[i] = n
		g.byExt[rn.extID] = NodeID(i)
	}

	droppedEdges, fixedNodes := g.Sanitize()
	log.Printf("hnsw: import: loaded %d nodes, sanitize dropped %d edges and fixed %d nodes", nNodes, droppedEdges, fixedNodes)

	ix.graph = g
	ix.Dims = dims
	ix.M = m
	ix.Efc = efc
	ix.Ef = ef
	ix.Metric = dist

	return ix, nil
}

// ExportFile atomically writes the index's snapshot to path, via a
// temp-file-plus-rename so a reader never observes a partially written
// file.
func (ix *Index) ExportFile(path string) error {
	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		err := ix.Export(pw)
		pw.CloseWithError(err)
		errCh <- err
	}()
	if err := natomic.WriteFile(path, pr); err != nil {
		return &SerializeError{Message: "writing file atomically", Err: err}
	}
	if err := <-errCh; err != nil {
		return err
	}
	return nil
}

// ImportFile reads a snapshot previously written by ExportFile or Export
// and replaces the index's contents with it.
func (ix *Index) ImportFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SerializeError{Message: "opening file", Err: err}
	}
	defer f.Close()
	return ix.Import(bufio.NewReader(f))
}

// SavedIndex is a wrapper around an Index that persists changes to a file
// on every call to Save. It is the streaming counterpart to ExportFile;
// callers that want to keep a descriptor-free handle around between saves
// should prefer this over repeated ExportFile calls.
type SavedIndex struct {
	*Index
	Path string
}

// LoadSavedIndex opens path, reading an existing snapshot if one is
// present, or starting empty (via NewBuilder) if the file is new or
// empty.
func LoadSavedIndex(path string, dims int) (*SavedIndex, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	ix, err := NewBuilder(dims).Build()
	if err != nil {
		return nil, err
	}

	if info.Size() > 0 {
		if _, err := ix.Import(bufio.NewReader(f)); err != nil {
			return nil, fmt.Errorf("import: %w", err)
		}
	}

	return &SavedIndex{Index: ix, Path: path}, nil
}

// Save writes the current index state to Path, replacing it atomically.
func (s *SavedIndex) Save() error {
	tmp, err := renameio.TempFile("", s.Path)
	if err != nil {
		return err
	}
	defer tmp.Cleanup()

	wr := bufio.NewWriter(tmp)
	if err := s.Export(wr); err != nil {
		return fmt.Errorf("exporting: %w", err)
	}
	if err := wr.Flush(); err != nil {
		return fmt.Errorf("flushing: %w", err)
	}
	return tmp.CloseAtomicallyReplace()
}
