// Package persist implements the knowledge-file container: a bit-exact
// binary layout (magic, version, timestamp, adaptation count, node
// table, edge table, little-endian throughout), written through a
// filesystem seam so the write-to-temp/fsync/rename failure model is
// testable without touching a real disk. Edges reference nodes by their
// position in the node table.
package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/Jak3Gil/melvin/graph"
)

var magic = [8]byte{'M', 'E', 'L', 'V', 'I', 'N', 0, 0}

const currentVersion uint32 = 1

const nodeIDFieldLen = 9

// Store reads and writes knowledge files through an afero.Fs, defaulting
// to the real filesystem. Tests substitute afero.NewMemMapFs() to
// exercise the temp-write/fsync/rename path without disk I/O.
type Store struct {
	Fs afero.Fs
}

// NewStore returns a Store backed by the real operating-system
// filesystem.
func NewStore() *Store {
	return &Store{Fs: afero.NewOsFs()}
}

// FormatError reports a corrupt or unrecognized knowledge file: a magic
// mismatch, a size prefix overrunning the buffer, or a payload length
// exceeding the remaining file. Loading aborts and the in-memory graph
// remains empty.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("persist: format error in %s: %s", e.Path, e.Reason)
}

// FileError reports an I/O failure against the knowledge file or its
// temp sibling: read, write, fsync, or rename. The offending path and
// operation are carried so callers can surface them.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("persist: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Save writes g's full state to path: header, node table, edge table, in
// the node/edge table order g.Nodes()/g.Edges() currently hold. Uses
// write-to-temp, fsync, rename so a crash mid-write leaves the previous
// file intact.
func (s *Store) Save(path string, g *graph.Graph, modifiedUnix uint64) error {
	var buf bytes.Buffer
	if err := encode(&buf, g, modifiedUnix); err != nil {
		return fmt.Errorf("persist: encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(s.Fs, dir, ".melvin-tmp-*")
	if err != nil {
		return &FileError{Op: "create temp file in", Path: dir, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		s.Fs.Remove(tmpName)
		return &FileError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.Fs.Remove(tmpName)
		return &FileError{Op: "fsync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		s.Fs.Remove(tmpName)
		return &FileError{Op: "close", Path: tmpName, Err: err}
	}
	if err := s.Fs.Rename(tmpName, path); err != nil {
		s.Fs.Remove(tmpName)
		return &FileError{Op: "rename to " + path + " from", Path: tmpName, Err: err}
	}

	g.ClearDirty()

	return nil
}

// Open reads a knowledge file from path into a fresh Graph. A short read
// or magic mismatch returns a *FormatError and no partially-built graph:
// format errors abort loading and the in-memory graph remains empty. A
// missing or unreadable file is reported as a *FileError wrapping the
// underlying cause, not a FormatError.
func (s *Store) Open(path string) (*graph.Graph, uint64, error) {
	data, err := afero.ReadFile(s.Fs, path)
	if err != nil {
		return nil, 0, &FileError{Op: "open", Path: path, Err: err}
	}

	g, modifiedUnix, err := decode(path, data)
	if err != nil {
		return nil, 0, err
	}

	return g, modifiedUnix, nil
}

func encode(buf *bytes.Buffer, g *graph.Graph, modifiedUnix uint64) error {
	buf.Write(magic[:])
	if err := binary.Write(buf, binary.LittleEndian, currentVersion); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, modifiedUnix); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, g.AdaptationCount()); err != nil {
		return err
	}

	nodes := g.Nodes()
	if err := binary.Write(buf, binary.LittleEndian, uint64(len(nodes))); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := encodeNode(buf, n); err != nil {
			return err
		}
	}

	edges := g.Edges()
	if err := binary.Write(buf, binary.LittleEndian, uint64(len(edges))); err != nil {
		return err
	}
	for _, e := range edges {
		if err := encodeEdge(buf, e); err != nil {
			return err
		}
	}

	return nil
}

func encodeNode(buf *bytes.Buffer, n *graph.Node) error {
	var idField [nodeIDFieldLen]byte
	copy(idField[:], n.ID)
	buf.Write(idField[:])

	fields := []any{
		uint32(len(n.Payload)),
		n.AbstractionLevel,
		float32(n.Weight),
		float32(n.Bias),
		float32(n.OutgoingWeightSum),
		float32(n.IncomingWeightSum),
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	buf.Write(n.Payload)

	return nil
}

func encodeEdge(buf *bytes.Buffer, e *graph.Edge) error {
	direction := uint8(0)
	if e.Direction {
		direction = 1
	}
	fields := []any{
		uint64(e.From.NodeIndex()),
		uint64(e.To.NodeIndex()),
		direction,
		float32(e.Weight),
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return err
		}
	}

	return nil
}

func decode(path string, data []byte) (*graph.Graph, uint64, error) {
	r := bytes.NewReader(data)

	var fileMagic [8]byte
	if err := readFull(r, fileMagic[:]); err != nil {
		return nil, 0, &FormatError{Path: path, Reason: "short read in header"}
	}
	if fileMagic != magic {
		return nil, 0, &FormatError{Path: path, Reason: "magic mismatch"}
	}

	var version uint32
	var modifiedUnix, adaptationCount uint64
	for _, dst := range []any{&version, &modifiedUnix, &adaptationCount} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, 0, &FormatError{Path: path, Reason: "short read in header"}
		}
	}
	if version != currentVersion {
		return nil, 0, &FormatError{Path: path, Reason: fmt.Sprintf("unsupported version %d", version)}
	}

	g := graph.New()

	nodes, err := decodeNodes(path, r, g)
	if err != nil {
		return nil, 0, err
	}

	if err := decodeEdges(path, r, g, nodes); err != nil {
		return nil, 0, err
	}

	g.RestoreAdaptationCount(adaptationCount)
	g.ClearDirty()

	return g, modifiedUnix, nil
}

func decodeNodes(path string, r *bytes.Reader, g *graph.Graph) ([]*graph.Node, error) {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, &FormatError{Path: path, Reason: "short read in node count"}
	}

	nodes := make([]*graph.Node, 0, count)
	for i := uint64(0); i < count; i++ {
		n, err := decodeOneNode(path, r, g)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	return nodes, nil
}

func decodeOneNode(path string, r *bytes.Reader, g *graph.Graph) (*graph.Node, error) {
	var idField [nodeIDFieldLen]byte
	if err := readFull(r, idField[:]); err != nil {
		return nil, &FormatError{Path: path, Reason: "short read in node id"}
	}

	var payloadSize, abstraction uint32
	var weight, bias, outSum, inSum float32
	for _, dst := range []any{&payloadSize, &abstraction, &weight, &bias, &outSum, &inSum} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, &FormatError{Path: path, Reason: "short read in node record"}
		}
	}
	if int64(payloadSize) > int64(r.Len()) {
		return nil, &FormatError{Path: path, Reason: "payload length exceeds remaining file"}
	}

	payload := make([]byte, payloadSize)
	if err := readFull(r, payload); err != nil {
		return nil, &FormatError{Path: path, Reason: "short read in node payload"}
	}

	return g.RestoreNode(trimNUL(idField[:]), payload, abstraction, float64(weight), float64(bias), float64(outSum), float64(inSum)), nil
}

func decodeEdges(path string, r *bytes.Reader, g *graph.Graph, nodes []*graph.Node) error {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return &FormatError{Path: path, Reason: "short read in edge count"}
	}

	for i := uint64(0); i < count; i++ {
		var fromIdx, toIdx uint64
		var direction uint8
		var weight float32
		for _, dst := range []any{&fromIdx, &toIdx, &direction, &weight} {
			if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
				return &FormatError{Path: path, Reason: "short read in edge record"}
			}
		}
		if fromIdx >= uint64(len(nodes)) || toIdx >= uint64(len(nodes)) {
			return &FormatError{Path: path, Reason: "edge references unknown node index"}
		}

		g.RestoreEdge(nodes[fromIdx], nodes[toIdx], direction == 1, float64(weight))
	}

	return nil
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)

	return err
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}

	return string(b)
}
