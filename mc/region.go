package mc

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// Region files hold up to 32x32 chunks: an 8 KiB header of 1024 4-byte
// locations (3-byte sector offset, 1-byte sector count) and 1024 4-byte
// big-endian timestamps, followed by 4 KiB sectors. Each chunk record is a
// 4-byte big-endian length, one compression scheme byte, and length-1 bytes
// of compressed NBT.
const sectorSize = 4096

// Compression scheme bytes from the region format.
const (
	CompressionGzip = 1
	CompressionZlib = 2
	CompressionNone = 3
)

var (
	// ErrCorruptHeader marks a region file too short to hold its header.
	ErrCorruptHeader = errors.New("corrupt region header")
	// ErrChunkNotFound is returned for chunks absent from the region file
	// or excluded by the world crop.
	ErrChunkNotFound = errors.New("chunk does not exist")
	// ErrChunkInvalid marks a chunk whose record or schema version is
	// unusable.
	ErrChunkInvalid = errors.New("chunk data invalid")
	// ErrChunkNBT marks a chunk whose NBT payload failed to decode.
	ErrChunkNBT = errors.New("chunk nbt unreadable")
)

var regionFilenameRegexp = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.mca$`)

// ParseRegionFilename extracts the region position from an r.X.Z.mca name.
func ParseRegionFilename(name string) (RegionPos, bool) {
	m := regionFilenameRegexp.FindStringSubmatch(name)
	if m == nil {
		return RegionPos{}, false
	}
	x, err1 := strconv.Atoi(m[1])
	z, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return RegionPos{}, false
	}
	return RegionPos{x, z}, true
}

// RegionFilename is the canonical file name for a region position.
func RegionFilename(pos RegionPos) string {
	return fmt.Sprintf("r.%d.%d.mca", pos.X, pos.Z)
}

// RegionFile reads and writes one .mca file. Chunk slots are always indexed
// by the original on-disk coordinates; rotation only affects the positions
// the file reports and accepts.
type RegionFile struct {
	Filename string

	pos         RegionPos // rotated position
	posOriginal RegionPos
	rotation    int
	crop        *WorldCrop

	exists      [1024]bool
	contained   [1024]bool
	invalid     [1024]bool
	timestamps  [1024]uint32
	compression [1024]byte
	data        [1024][]byte

	chunks []ChunkPos // rotated positions of contained chunks
}

// NewRegionFile prepares a reader for the given path; the position is taken
// from the file name.
func NewRegionFile(path string) (*RegionFile, error) {
	pos, ok := ParseRegionFilename(filepath.Base(path))
	if !ok {
		return nil, fmt.Errorf("not a region file name: %s", filepath.Base(path))
	}
	return &RegionFile{Filename: path, pos: pos, posOriginal: pos}, nil
}

// NewEmptyRegion creates an in-memory region at pos, for writing.
func NewEmptyRegion(pos RegionPos) *RegionFile {
	return &RegionFile{pos: pos, posOriginal: pos}
}

// SetRotation turns all reported positions by count quarter turns. Call
// before reading.
func (r *RegionFile) SetRotation(count int) {
	r.rotation = ((count % 4) + 4) % 4
	r.pos = r.posOriginal.Rotate(r.rotation)
}

// SetWorldCrop excludes chunks outside the crop area. Call before reading.
func (r *RegionFile) SetWorldCrop(crop *WorldCrop) {
	r.crop = crop
}

// Pos returns the region position, rotated if a rotation is set.
func (r *RegionFile) Pos() RegionPos { return r.pos }

// chunkIndex maps a (possibly rotated) chunk position to its header slot.
func (r *RegionFile) chunkIndex(pos ChunkPos) int {
	if r.rotation != 0 {
		pos = pos.Rotate(4 - r.rotation)
	}
	return pos.HeaderIndex()
}

func (r *RegionFile) parseHeaders(raw []byte, offsets *[1024]uint32) error {
	if len(raw) < 2*sectorSize {
		return ErrCorruptHeader
	}
	if err := binary.Read(bytes.NewReader(raw[:sectorSize]), binary.BigEndian, offsets[:]); err != nil {
		return fmt.Errorf("failed to read chunk locations: %w", err)
	}
	if err := binary.Read(bytes.NewReader(raw[sectorSize:2*sectorSize]), binary.BigEndian, r.timestamps[:]); err != nil {
		return fmt.Errorf("failed to read chunk timestamps: %w", err)
	}
	r.chunks = r.chunks[:0]
	for i := 0; i < 1024; i++ {
		r.exists[i] = offsets[i] != 0
		if !r.exists[i] {
			r.contained[i] = false
			continue
		}
		original := r.posOriginal.Chunk(i%32, i/32)
		r.contained[i] = r.crop == nil || r.crop.ContainsChunk(original)
		if r.contained[i] {
			r.chunks = append(r.chunks, original.Rotate(r.rotation))
		}
	}
	return nil
}

// ReadHeaders loads only the offset and timestamp tables, enough to know
// which chunks exist and when they changed.
func (r *RegionFile) ReadHeaders() error {
	f, err := os.Open(r.Filename)
	if err != nil {
		return err
	}
	defer f.Close()
	raw := make([]byte, 2*sectorSize)
	if _, err := io.ReadFull(f, raw); err != nil {
		return ErrCorruptHeader
	}
	var offsets [1024]uint32
	return r.parseHeaders(raw, &offsets)
}

// Read loads the headers and every present chunk's raw payload.
func (r *RegionFile) Read() error {
	raw, err := os.ReadFile(r.Filename)
	if err != nil {
		return err
	}
	var offsets [1024]uint32
	if err := r.parseHeaders(raw, &offsets); err != nil {
		return err
	}
	for i := 0; i < 1024; i++ {
		if !r.exists[i] {
			continue
		}
		offset := int(offsets[i]>>8) * sectorSize
		if offset+5 > len(raw) {
			r.invalid[i] = true
			continue
		}
		size := int(binary.BigEndian.Uint32(raw[offset : offset+4]))
		if size < 1 || offset+4+size > len(raw) {
			r.invalid[i] = true
			continue
		}
		r.compression[i] = raw[offset+4]
		r.data[i] = append([]byte(nil), raw[offset+5:offset+4+size]...)
	}
	return nil
}

// ContainingChunks returns the positions of all chunks present and inside
// the crop, rotated to query space.
func (r *RegionFile) ContainingChunks() []ChunkPos {
	return r.chunks
}

// HasChunk reports whether the chunk is present and inside the crop.
func (r *RegionFile) HasChunk(pos ChunkPos) bool {
	i := r.chunkIndex(pos)
	return r.exists[i] && r.contained[i]
}

// ChunkTimestamp returns the chunk's modification timestamp.
func (r *RegionFile) ChunkTimestamp(pos ChunkPos) uint32 {
	return r.timestamps[r.chunkIndex(pos)]
}

// SetChunkTimestamp overrides a chunk timestamp, for writing.
func (r *RegionFile) SetChunkTimestamp(pos ChunkPos, ts uint32) {
	r.timestamps[r.chunkIndex(pos)] = ts
}

// ChunkData returns the raw compressed payload and scheme byte of a chunk.
func (r *RegionFile) ChunkData(pos ChunkPos) ([]byte, byte) {
	i := r.chunkIndex(pos)
	return r.data[i], r.compression[i]
}

// SetChunkData replaces a chunk's compressed payload; empty data removes
// the chunk.
func (r *RegionFile) SetChunkData(pos ChunkPos, data []byte, compression byte) {
	i := r.chunkIndex(pos)
	if len(data) == 0 {
		r.exists[i] = false
		r.contained[i] = false
		r.data[i] = nil
		return
	}
	r.exists[i] = true
	r.contained[i] = true
	r.invalid[i] = false
	r.compression[i] = compression
	r.data[i] = data
}

// Write assembles the region back into the on-disk format, assigning chunk
// records sequentially from sector 2 and padding each to a sector boundary.
func (r *RegionFile) Write(path string) error {
	var body bytes.Buffer
	var offsets [1024]uint32
	sector := 2
	for i := 0; i < 1024; i++ {
		if !r.exists[i] || len(r.data[i]) == 0 {
			continue
		}
		record := make([]byte, 5+len(r.data[i]))
		binary.BigEndian.PutUint32(record, uint32(len(r.data[i])+1))
		record[4] = r.compression[i]
		copy(record[5:], r.data[i])
		sectors := (len(record) + sectorSize - 1) / sectorSize
		offsets[i] = uint32(sector)<<8 | uint32(sectors)
		body.Write(record)
		if pad := sectors*sectorSize - len(record); pad > 0 {
			body.Write(make([]byte, pad))
		}
		sector += sectors
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, offsets[:]); err == nil {
		err = binary.Write(f, binary.BigEndian, r.timestamps[:])
	}
	if err == nil {
		_, err = f.Write(body.Bytes())
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to write region %s: %w", path, err)
	}
	return f.Close()
}

func decompressChunk(compression byte, payload []byte) ([]byte, error) {
	switch compression {
	case CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case CompressionNone:
		return payload, nil
	default:
		return nil, fmt.Errorf("unknown compression scheme %d", compression)
	}
}

// LoadChunk decompresses and decodes the chunk at pos (in query space) into
// a Chunk, interning its block states in the registry. Missing chunks
// return ErrChunkNotFound, truncated records or unsupported schema versions
// ErrChunkInvalid, and undecodable NBT ErrChunkNBT.
func (r *RegionFile) LoadChunk(pos ChunkPos, registry *BlockRegistry) (*Chunk, error) {
	i := r.chunkIndex(pos)
	if !r.exists[i] || !r.contained[i] {
		return nil, ErrChunkNotFound
	}
	if r.invalid[i] || len(r.data[i]) == 0 {
		return nil, ErrChunkInvalid
	}
	raw, err := decompressChunk(r.compression[i], r.data[i])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChunkInvalid, err)
	}
	chunk, err := DecodeChunk(raw, registry, r.rotation, r.crop)
	if err != nil {
		return nil, err
	}
	if chunk.Pos != pos {
		return nil, fmt.Errorf("%w: chunk claims position %d,%d but lives at %d,%d",
			ErrChunkInvalid, chunk.Pos.X, chunk.Pos.Z, pos.X, pos.Z)
	}
	chunk.Timestamp = r.timestamps[i]
	return chunk, nil
}
