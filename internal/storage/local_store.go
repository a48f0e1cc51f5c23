package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// LocalStore пишет файлы на диск и отдаёт их по publicPrefix.
type LocalStore struct {
	rootPath       string
	publicPrefix   string
	maxUploadBytes int64
	now            func() time.Time
}

func NewLocalStore(rootPath, publicPrefix string, maxUploadMB int64) (*LocalStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}
	return &LocalStore{
		rootPath:       rootPath,
		publicPrefix:   strings.TrimRight(publicPrefix, "/"),
		maxUploadBytes: maxUploadMB * 1024 * 1024,
		now:            time.Now,
	}, nil
}

// Store сохраняет файл через временный файл и rename, возвращает публичный URL.
func (s *LocalStore) Store(ctx context.Context, r io.Reader, meta gateway.FileMeta) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	relative := objectName(meta, s.now())
	target := filepath.Join(s.rootPath, filepath.FromSlash(relative))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("storage: не удалось создать каталог пользователя: %w", err)
	}

	tempPath := target + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, &io.LimitedReader{R: r, N: s.maxUploadBytes + 1})
	if err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("размер файла превышает лимит %d байт", s.maxUploadBytes))
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, target); err != nil {
		return "", fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return s.publicPrefix + "/" + relative, nil
}

// objectName раскладывает файлы по владельцу: <owner>/<unixnano>_<имя>.
func objectName(meta gateway.FileMeta, now time.Time) string {
	return path.Join(meta.OwnerID.String(), fmt.Sprintf("%d_%s", now.UnixNano(), sanitizeFilename(meta.Name)))
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	return name
}
