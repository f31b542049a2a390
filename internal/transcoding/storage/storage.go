package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"transcoding_service/internal/transcoding/domain"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/logger"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	partialSuffix = ".part"
	lockSuffix    = ".lock"
)

// Storage output / staging file layout
type Storage struct {
	outputDir    string
	stagingDir   string
	ext          string
	publicPrefix string
}

// New create Storage, directories are created when missing
func New(cfg config.StorageConfig) (*Storage, error) {
	s := &Storage{
		outputDir:    cfg.OutputDir,
		stagingDir:   cfg.StagingDir,
		ext:          cfg.Extension,
		publicPrefix: cfg.PublicPrefix,
	}
	if s.outputDir == "" {
		s.outputDir = "./files"
	}
	if s.stagingDir == "" {
		s.stagingDir = os.TempDir()
	}
	if s.ext == "" {
		s.ext = ".webm"
	}
	for _, dir := range []string{s.outputDir, s.stagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return s, nil
}

// OutputDir directory holding completed artifacts
func (s *Storage) OutputDir() string { return s.outputDir }

// OutputName derived output file name for sourceURL
func (s *Storage) OutputName(sourceURL string) (string, error) {
	return DeriveOutputName(sourceURL, s.ext)
}

// OutputPath permanent output path for sourceURL
func (s *Storage) OutputPath(sourceURL string) (string, error) {
	name, err := s.OutputName(sourceURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.outputDir, name), nil
}

// PublicPath relative path stored as the job result, e.g. files/sample.webm
func (s *Storage) PublicPath(name string) string {
	if s.publicPrefix == "" {
		return name
	}
	return path.Join(s.publicPrefix, name)
}

// PartialPath file the transcoder writes to before the output is promoted.
// Kept in staging, output_dir only ever holds finished artifacts.
func (s *Storage) PartialPath(outputPath string) string {
	return filepath.Join(s.stagingDir, filepath.Base(outputPath)+partialSuffix)
}

func (s *Storage) lockPath(outputPath string) string {
	return filepath.Join(s.stagingDir, filepath.Base(outputPath)+lockSuffix)
}

// InProgress reports whether name is a partial output or a slot lock file
func InProgress(name string) bool {
	return strings.HasSuffix(name, partialSuffix) || strings.HasSuffix(name, lockSuffix)
}

// StagingPath unique staging file path for one session
func (s *Storage) StagingPath(sourceURL string) string {
	return filepath.Join(s.stagingDir, uuid.NewString()+sourceExt(sourceURL))
}

// Exists report whether path exists on disk
func (s *Storage) Exists(p string) (bool, error) {
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// OutputExists report whether the output for sourceURL is already in place
func (s *Storage) OutputExists(sourceURL string) (bool, error) {
	p, err := s.OutputPath(sourceURL)
	if err != nil {
		return false, err
	}
	return s.Exists(p)
}

// Promote atomically moves the finished partial file to its final location
func (s *Storage) Promote(partialPath, outputPath string) error {
	err := os.Rename(partialPath, outputPath)
	if errors.Is(err, syscall.EXDEV) {
		err = moveAcross(partialPath, outputPath)
	}
	if err != nil {
		return fmt.Errorf("promote %s: %w", outputPath, err)
	}
	return nil
}

// moveAcross staging 與 output 不在同一個 filesystem: 先複製成 output_dir 內的暫存檔再 rename
func moveAcross(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+partialSuffix)
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}

// Remove deletes p, a missing file is not an error
func (s *Storage) Remove(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DeleteOutput removes the permanent artifact for sourceURL
func (s *Storage) DeleteOutput(sourceURL string) (string, error) {
	p, err := s.OutputPath(sourceURL)
	if err != nil {
		return "", err
	}
	if err := s.Remove(p); err != nil {
		return p, fmt.Errorf("delete output %s: %w", p, err)
	}
	return p, nil
}

// Slot exclusive claim on one output path across workers sharing the directory
type Slot struct {
	lock *flock.Flock
	path string
}

// AcquireSlot lock the output path, ErrAlreadyExists when another session holds it
func (s *Storage) AcquireSlot(outputPath string) (*Slot, error) {
	lockPath := s.lockPath(outputPath)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is being written by another job", domain.ErrAlreadyExists, filepath.Base(outputPath))
	}
	return &Slot{lock: lock, path: lockPath}, nil
}

// Release unlock the slot and drop its lock file
func (sl *Slot) Release() {
	if sl == nil {
		return
	}
	if err := sl.lock.Unlock(); err != nil {
		logger.Log.Warn("release output slot failed", zap.String("lock", sl.path), zap.Error(err))
	}
	if err := os.Remove(sl.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Log.Warn("remove slot lock file failed", zap.String("lock", sl.path), zap.Error(err))
	}
}
