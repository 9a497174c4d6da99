package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafeID - id документа нельзя использовать как имя каталога выгрузки.
var ErrUnsafeID = errors.New("drawing id is not a safe directory name")

// ============================================================
// File Storage
// ============================================================

// FileStorage раскладывает выгрузки документов по каталогам <root>/<drawingID>.
type FileStorage struct {
	root string
}

func NewFileStorage(root string) *FileStorage {
	return &FileStorage{root: root}
}

// DrawingDir возвращает каталог выгрузки документа. Путь всегда лежит
// непосредственно под корнем хранилища.
func (s *FileStorage) DrawingDir(drawingID string) (string, error) {
	switch {
	case drawingID == "", drawingID == ".", drawingID == "..",
		strings.ContainsAny(drawingID, `/\`+"\x00"),
		filepath.VolumeName(drawingID) != "":
		return "", fmt.Errorf("%w: %q", ErrUnsafeID, drawingID)
	}

	dir := filepath.Join(s.root, drawingID)
	rel, err := filepath.Rel(filepath.Clean(s.root), dir)
	if err != nil || rel != drawingID {
		return "", fmt.Errorf("%w: %q", ErrUnsafeID, drawingID)
	}
	return dir, nil
}

func (s *FileStorage) file(drawingID, name string) (string, error) {
	dir, err := s.DrawingDir(drawingID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (s *FileStorage) EnsureDir(drawingID string) error {
	path, err := s.DrawingDir(drawingID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir drawing dir: %w", err)
	}
	return nil
}

// SaveFile пишет name в каталог документа через временный файл, чтобы
// читатель не увидел половину выгрузки. Возвращает итоговый путь.
func (s *FileStorage) SaveFile(drawingID, name string, data []byte) (string, error) {
	if err := s.EnsureDir(drawingID); err != nil {
		return "", err
	}
	target, err := s.file(drawingID, name)
	if err != nil {
		return "", err
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", err
	}
	return target, nil
}
