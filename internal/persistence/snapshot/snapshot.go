package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

// Header is written as a plain JSON line ahead of the gob body so tools can identify a snapshot
// without decoding it.
type Header struct {
	Version int       `json:"version"`
	Run     string    `json:"run"`
	TakenAt time.Time `json:"taken_at"`
	Entries int       `json:"entries"`
}

// SnapshotV1 is the relay's Diff Store at one instant.
type SnapshotV1 struct {
	Header Header `json:"header"`

	NextStorageID int       `json:"next_storage_id"`
	Blocks        []BlockV1 `json:"blocks"`
	Cont          []ContV1  `json:"cont"`
	Storage       []SlotV1  `json:"storage"`
}

type BlockV1 struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Type int `json:"type"`
}

// ContV1 is one container slot at world tile (X, Y).
type ContV1 struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Slot  int `json:"slot"`
	ID    int `json:"id"`
	Count int `json:"count"`
	Aux   int `json:"aux"`
}

// SlotV1 is one slot of a movable storage.
type SlotV1 struct {
	StorageID int `json:"storage_id"`
	Slot      int `json:"slot"`
	ID        int `json:"id"`
	Count     int `json:"count"`
	Aux       int `json:"aux"`
}

func (s *SnapshotV1) Len() int { return len(s.Blocks) + len(s.Cont) + len(s.Storage) }

// WriteSnapshot writes snap to path atomically (temp file plus rename).
func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	snap.Header.Version = Version
	snap.Header.Entries = snap.Len()
	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// FileName is the conventional name of a snapshot taken at t.
func FileName(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000Z") + ".snap.zst"
}

// ErrNoSnapshot is returned by Latest when dir holds no snapshot.
var ErrNoSnapshot = errors.New("no snapshot found")

// Latest returns the path of the newest snapshot in dir by file name.
func Latest(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoSnapshot
		}
		return "", err
	}
	var names []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".snap.zst") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", ErrNoSnapshot
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}
