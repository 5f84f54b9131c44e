package dictionary

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// Format is a dictionary file layout.
type Format int

const (
	FormatUnknown Format = iota
	// FormatChunk is dict_NNNN.bin: int32 count, then per word a uint16 byte
	// length, the UTF-8 bytes and a uint16 rank (1 = most frequent).
	FormatChunk
	// FormatText is one "word<whitespace>frequency" per line. A missing
	// frequency counts as 1; lines starting with # are comments.
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatChunk:
		return "chunk"
	case FormatText:
		return "text"
	}
	return "unknown"
}

const maxChunkWords = 1000000

// ErrBadChunk marks a chunk file whose header or body cannot be decoded.
var ErrBadChunk = errors.New("malformed dictionary chunk")

// Entry is one dictionary word with its frequency score.
type Entry struct {
	Word string
	Freq int
}

// rankScore turns a rank into a frequency-like score: rank 1 scores 65535.
func rankScore(rank uint16) int {
	return 65536 - int(rank)
}

// scoreRank is the inverse of rankScore, clamped to the uint16 range.
func scoreRank(freq int) uint16 {
	r := 65536 - freq
	switch {
	case r < 1:
		return 1
	case r > 65535:
		return 65535
	}
	return uint16(r)
}

// DetectFormat classifies path by name and, for chunks, by a readable header.
func DetectFormat(path string) (Format, error) {
	base := strings.ToLower(filepath.Base(path))
	switch filepath.Ext(base) {
	case ".bin":
		if !strings.HasPrefix(base, "dict_") {
			break
		}
		if _, err := chunkHeader(path); err != nil {
			return FormatUnknown, err
		}
		return FormatChunk, nil
	case ".txt":
		return FormatText, nil
	}
	return FormatUnknown, fmt.Errorf("unable to detect format for file %s", path)
}

// chunkID parses dict_0007.bin into 7.
func chunkID(path string) (int, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "dict_") || !strings.HasSuffix(base, ".bin") {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, "dict_"), ".bin"))
	if err != nil {
		return 0, false
	}
	return id, true
}

func chunkHeader(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open chunk %s: %w", path, err)
	}
	defer f.Close()
	var n int32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return 0, fmt.Errorf("%w: %s header: %v", ErrBadChunk, path, err)
	}
	if n < 0 || n > maxChunkWords {
		return 0, fmt.Errorf("%w: %s claims %d words", ErrBadChunk, path, n)
	}
	return int(n), nil
}

// ReadChunk decodes a chunk stream.
func ReadChunk(r io.Reader) ([]Entry, error) {
	br := bufio.NewReader(r)
	var n int32
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadChunk, err)
	}
	if n < 0 || n > maxChunkWords {
		return nil, fmt.Errorf("%w: claims %d words", ErrBadChunk, n)
	}

	out := make([]Entry, 0, n)
	for i := 0; i < int(n); i++ {
		var wordLen uint16
		if err := binary.Read(br, binary.LittleEndian, &wordLen); err != nil {
			if errors.Is(err, io.EOF) {
				log.Warnf("Chunk ended after %d of %d words", i, n)
				break
			}
			return nil, fmt.Errorf("%w: word length: %v", ErrBadChunk, err)
		}
		buf := make([]byte, wordLen)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: word: %v", ErrBadChunk, err)
		}
		var rank uint16
		if err := binary.Read(br, binary.LittleEndian, &rank); err != nil {
			return nil, fmt.Errorf("%w: rank: %v", ErrBadChunk, err)
		}
		out = append(out, Entry{Word: string(buf), Freq: rankScore(rank)})
	}
	return out, nil
}

// WriteChunk encodes entries in chunk format. Freq is mapped back to a rank.
func WriteChunk(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, int32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if len(e.Word) > 0xFFFF {
			return fmt.Errorf("word too long: %d bytes", len(e.Word))
		}
		if err := binary.Write(bw, binary.LittleEndian, uint16(len(e.Word))); err != nil {
			return err
		}
		if _, err := bw.WriteString(e.Word); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, scoreRank(e.Freq)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadText decodes the plain text format. Malformed lines are skipped.
func ReadText(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	var out []Entry
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		freq := 1
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil || n < 0 {
				log.Debugf("Skipping line %d: bad frequency %q", line, fields[len(fields)-1])
				continue
			}
			freq = n
		}
		out = append(out, Entry{Word: fields[0], Freq: freq})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read text dictionary: %w", err)
	}
	return out, nil
}
