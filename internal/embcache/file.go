package embcache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
)

var topicFilePattern = regexp.MustCompile(`[^a-zA-Z0-9가-힣_-]+`)

// FileCache persists one topic's window as two parallel files: an id list
// and an N×D float32 matrix. Save writes temp files and renames them over
// the previous window, so a crash mid-save leaves the old window intact.
type FileCache struct {
	dir  string
	dims int
}

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string, dims int) (*FileCache, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("file cache requires positive dimensions, got %d", dims)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}
	return &FileCache{dir: dir, dims: dims}, nil
}

// Load reads a topic's cached window. Missing files, a stale vector width,
// or corrupt contents all yield an empty window: the cache is rebuildable,
// so damage is never an error the pipeline has to handle.
func (c *FileCache) Load(_ context.Context, topic string) ([]int64, [][]float32, error) {
	ids, err := readIDs(c.idPath(topic))
	if err != nil {
		return nil, [][]float32{}, nil
	}
	vecs, dims, err := readVectors(c.vecPath(topic))
	if err != nil || dims != c.dims || len(vecs) != len(ids) {
		return nil, [][]float32{}, nil
	}
	return ids, vecs, nil
}

// Save atomically replaces the topic's cached window.
func (c *FileCache) Save(_ context.Context, topic string, ids []int64, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("saving cache for %q: %d ids but %d vectors", topic, len(ids), len(vecs))
	}
	for i, vec := range vecs {
		if len(vec) != c.dims {
			return fmt.Errorf("saving cache for %q: vector %d has width %d, want %d", topic, ids[i], len(vec), c.dims)
		}
	}

	vecTmp := c.vecPath(topic) + ".tmp"
	idTmp := c.idPath(topic) + ".tmp"
	if err := writeVectors(vecTmp, vecs, c.dims); err != nil {
		return err
	}
	if err := writeIDs(idTmp, ids); err != nil {
		os.Remove(vecTmp)
		return err
	}
	if err := os.Rename(vecTmp, c.vecPath(topic)); err != nil {
		return fmt.Errorf("replacing vector file for %q: %w", topic, err)
	}
	if err := os.Rename(idTmp, c.idPath(topic)); err != nil {
		return fmt.Errorf("replacing id file for %q: %w", topic, err)
	}
	return nil
}

func (c *FileCache) idPath(topic string) string {
	return filepath.Join(c.dir, sanitizeTopic(topic)+"_ids.bin")
}

func (c *FileCache) vecPath(topic string) string {
	return filepath.Join(c.dir, sanitizeTopic(topic)+"_vecs.bin")
}

func sanitizeTopic(topic string) string {
	return topicFilePattern.ReplaceAllString(topic, "_")
}

func writeIDs(path string, ids []int64) error {
	buf := make([]byte, 8+8*len(ids))
	binary.LittleEndian.PutUint64(buf, uint64(len(ids)))
	for i, id := range ids {
		binary.LittleEndian.PutUint64(buf[8+8*i:], uint64(id))
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("writing id file: %w", err)
	}
	return nil
}

func readIDs(path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("id file too short")
	}
	count := int(binary.LittleEndian.Uint64(data))
	if len(data) < 8+8*count {
		return nil, fmt.Errorf("id file truncated")
	}
	ids := make([]int64, count)
	for i := range ids {
		ids[i] = int64(binary.LittleEndian.Uint64(data[8+8*i:]))
	}
	return ids, nil
}

func writeVectors(path string, vecs [][]float32, dims int) error {
	buf := make([]byte, 16+4*len(vecs)*dims)
	binary.LittleEndian.PutUint64(buf, uint64(len(vecs)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(dims))
	off := 16
	for _, vec := range vecs {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("writing vector file: %w", err)
	}
	return nil
}

func readVectors(path string) ([][]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 16 {
		return nil, 0, fmt.Errorf("vector file too short")
	}
	rows := int(binary.LittleEndian.Uint64(data))
	dims := int(binary.LittleEndian.Uint64(data[8:]))
	if dims <= 0 || len(data) < 16+4*rows*dims {
		return nil, 0, fmt.Errorf("vector file truncated")
	}
	vecs := make([][]float32, rows)
	off := 16
	for i := range vecs {
		vec := make([]float32, dims)
		for d := range vec {
			vec[d] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vecs[i] = vec
	}
	return vecs, dims, nil
}
