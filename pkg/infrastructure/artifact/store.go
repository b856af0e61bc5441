package artifact

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"
)

// Directory names within the store root.
const (
	objectsDir = "objects"
	tmpDir     = "tmp"
)

// Store is a content-addressed object store on the local filesystem.
// Object identity is the BLAKE3 digest of the uncompressed bytes; two
// versions with byte-identical output share one stored object. Objects are
// kept gzip-compressed on disk.
//
// Safe for concurrent reads and for concurrent puts of distinct content;
// racing puts of identical content converge on the same object file.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	for _, dir := range []string{
		root,
		filepath.Join(root, objectsDir),
		filepath.Join(root, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// objectPath fans objects out over 256 subdirectories keyed by the first
// two checksum characters.
func (s *Store) objectPath(key string) string {
	return filepath.Join(s.root, objectsDir, key[:2], key)
}

// Put ingests content from r, hashes it, and writes it compressed under
// its content address. Writing goes through a temp file followed by an
// atomic rename so readers never observe a partial object.
func (s *Store) Put(r io.Reader) (entities.ArtifactRef, error) {
	tmp, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "put-*")
	if err != nil {
		return entities.ArtifactRef{}, fmt.Errorf("creating temp object: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := blake3.New()
	gz := gzip.NewWriter(tmp)
	size, err := io.Copy(io.MultiWriter(hasher, gz), r)
	if err != nil {
		tmp.Close()
		return entities.ArtifactRef{}, fmt.Errorf("writing object: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return entities.ArtifactRef{}, fmt.Errorf("flushing object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return entities.ArtifactRef{}, fmt.Errorf("closing temp object: %w", err)
	}

	checksum := hex.EncodeToString(hasher.Sum(nil))
	ref := entities.ArtifactRef{
		Checksum:   checksum,
		StorageKey: checksum,
		SizeBytes:  size,
	}

	dest := s.objectPath(ref.StorageKey)
	if _, err := os.Stat(dest); err == nil {
		// identical content already stored
		return ref, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return entities.ArtifactRef{}, fmt.Errorf("creating object directory: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return entities.ArtifactRef{}, fmt.Errorf("committing object: %w", err)
	}
	return ref, nil
}

// Get opens the object for reading. The returned stream yields the
// uncompressed content.
func (s *Store) Get(key string) (io.ReadCloser, error) {
	if len(key) < 2 {
		return nil, entities.NewValidationError("malformed storage key %q", key)
	}
	f, err := os.Open(s.objectPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, entities.NewDependencyError("artifact object missing", err)
		}
		return nil, entities.NewDependencyError("opening artifact object", err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, entities.NewIntegrityError("artifact object is corrupt", err)
	}
	return &objectReader{gz: gz, file: f}, nil
}

type objectReader struct {
	gz   *gzip.Reader
	file *os.File
}

func (r *objectReader) Read(p []byte) (int, error) { return r.gz.Read(p) }

func (r *objectReader) Close() error {
	gzErr := r.gz.Close()
	fileErr := r.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}

// Verify recomputes the content digest and compares it to the expected
// checksum. A mismatch is an integrity failure, never silently served.
func (s *Store) Verify(key string, checksum string) error {
	rc, err := s.Get(key)
	if err != nil {
		return err
	}
	defer rc.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, rc); err != nil {
		return entities.NewIntegrityError("reading artifact for verification", err)
	}
	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual != checksum {
		return entities.NewIntegrityError(
			fmt.Sprintf("artifact checksum mismatch: want %s, got %s", checksum, actual), nil)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	if len(key) < 2 {
		return entities.NewValidationError("malformed storage key %q", key)
	}
	err := os.Remove(s.objectPath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// StoredObject describes one object found by List, for the GC sweep.
type StoredObject struct {
	Key        string
	ModifiedAt time.Time
}

func (s *Store) List() ([]StoredObject, error) {
	var objects []StoredObject
	root := filepath.Join(s.root, objectsDir)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		objects = append(objects, StoredObject{
			Key:        info.Name(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}
