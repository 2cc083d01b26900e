package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/asset-hub/asset-hub/internal/asset"
)

const metadataSuffix = ".json"

// NewStore 以 basePath 为根目录构建文件系统存储，整个进程复用一份实例。
// 磁盘布局：
//
//	<basePath>/<id>/<filename>         # 正文
//	<basePath>/<id>/<filename>.json    # 元数据
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一条目并发写入，同时复用 basePath。
type fileStore struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) HasMetadata(ctx context.Context, id asset.FileID, filename string) (bool, error) {
	path, err := s.metadataPath(id, filename)
	if err != nil {
		return false, err
	}
	return s.fileExists(ctx, path)
}

func (s *fileStore) HasContent(ctx context.Context, id asset.FileID, filename string) (bool, error) {
	path, err := s.contentPath(id, filename)
	if err != nil {
		return false, err
	}
	return s.fileExists(ctx, path)
}

func (s *fileStore) GetMetadata(ctx context.Context, id asset.FileID, filename string) (asset.FileMetadata, error) {
	if err := ctx.Err(); err != nil {
		return asset.FileMetadata{}, err
	}

	path, err := s.metadataPath(id, filename)
	if err != nil {
		return asset.FileMetadata{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return asset.FileMetadata{}, ErrMetadataNotFound
		}
		return asset.FileMetadata{}, err
	}

	var rec asset.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return asset.FileMetadata{}, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	meta, err := asset.FromRecord(rec)
	if err != nil {
		return asset.FileMetadata{}, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	return meta, nil
}

func (s *fileStore) GetContent(ctx context.Context, id asset.FileID, filename string) (*ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.contentPath(id, filename)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrContentNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}

	return &ReadResult{
		Entry: Entry{
			ID:        id,
			Filename:  filename,
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		},
		Reader: f,
	}, nil
}

func (s *fileStore) SetMetadata(ctx context.Context, id asset.FileID, filename string, meta asset.FileMetadata) error {
	path, err := s.metadataPath(id, filename)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(meta.ToRecord())
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	unlock := s.lockEntry(id, filename)
	defer unlock()

	_, err = s.writeAtomic(ctx, path, strings.NewReader(string(raw)))
	return err
}

func (s *fileStore) SetContent(ctx context.Context, id asset.FileID, filename string, body io.Reader) (*Entry, error) {
	path, err := s.contentPath(id, filename)
	if err != nil {
		return nil, err
	}

	unlock := s.lockEntry(id, filename)
	defer unlock()

	written, err := s.writeAtomic(ctx, path, body)
	if err != nil {
		return nil, err
	}

	return &Entry{
		ID:        id,
		Filename:  filename,
		SizeBytes: written,
		ModTime:   time.Now().UTC(),
	}, nil
}

func (s *fileStore) Remove(ctx context.Context, id asset.FileID, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lockEntry(id, filename)
	defer unlock()

	contentPath, err := s.contentPath(id, filename)
	if err != nil {
		return err
	}
	metaPath, err := s.metadataPath(id, filename)
	if err != nil {
		return err
	}

	for _, path := range []string{contentPath, metaPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *fileStore) RemoveAll(ctx context.Context, id asset.FileID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := s.idDir(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) ListIDs(ctx context.Context) ([]asset.FileID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}

	var ids []asset.FileID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// 非内容寻址目录（临时文件、手工残留）不参与遍历。
		if !asset.ValidFileID(entry.Name()) {
			continue
		}
		ids = append(ids, asset.FileID(entry.Name()))
	}
	return ids, nil
}

func (s *fileStore) ListFilenames(ctx context.Context, id asset.FileID) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := s.idDir(id)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, metadataSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, metadataSuffix))
	}
	return names, nil
}

func (s *fileStore) fileExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// writeAtomic 先写临时文件再 rename，失败时清理残留，保证读取方不见半写内容。
func (s *fileStore) writeAtomic(ctx context.Context, path string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), ".asset-*")
	if err != nil {
		return 0, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return 0, err
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return 0, err
	}
	return written, nil
}

func (s *fileStore) lockEntry(id asset.FileID, filename string) func() {
	key := id.String() + "::" + filename
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *fileStore) idDir(id asset.FileID) (string, error) {
	if !asset.ValidFileID(id.String()) {
		return "", fmt.Errorf("invalid file id: %q", id)
	}
	return filepath.Join(s.basePath, id.String()), nil
}

func (s *fileStore) contentPath(id asset.FileID, filename string) (string, error) {
	dir, err := s.idDir(id)
	if err != nil {
		return "", err
	}
	if err := validateFilename(filename); err != nil {
		return "", err
	}
	return filepath.Join(dir, filename), nil
}

func (s *fileStore) metadataPath(id asset.FileID, filename string) (string, error) {
	path, err := s.contentPath(id, filename)
	if err != nil {
		return "", err
	}
	return path + metadataSuffix, nil
}

func validateFilename(filename string) error {
	if filename == "" {
		return errors.New("filename required")
	}
	if strings.ContainsAny(filename, "/\\") || filename == "." || filename == ".." {
		return fmt.Errorf("invalid filename: %q", filename)
	}
	if strings.HasSuffix(filename, metadataSuffix) {
		// 正文文件名不允许与元数据文件后缀重叠，避免两层互相覆盖。
		return fmt.Errorf("invalid filename: %q", filename)
	}
	return nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
