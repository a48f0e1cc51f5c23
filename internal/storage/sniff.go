// Package storage сохраняет файлы сдачи этапов и доказательства по спорам.
package storage

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/h2non/filetype"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// Разрешённые типы по магическим байтам.
var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"application/zip": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"video/mp4": true,
}

type Sniffed struct {
	ContentType string
	Extension   string
	// Reader отдаёт файл целиком, включая прочитанную голову.
	Reader io.Reader
}

// Sniff определяет реальный тип файла по первым 512 байтам.
func Sniff(r io.Reader) (*Sniffed, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
	}
	if n == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "файл не может быть пустым")
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return nil, apperror.New(apperror.ErrCodeValidation, "не удалось определить тип файла")
	}
	if !allowedMimeTypes[kind.MIME.Value] {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("неподдерживаемый тип файла (%s). Разрешены: %s", kind.MIME.Value, strings.Join(AllowedTypes(), ", ")))
	}

	return &Sniffed{
		ContentType: kind.MIME.Value,
		Extension:   "." + kind.Extension,
		Reader:      io.MultiReader(bytes.NewReader(head), r),
	}, nil
}

func AllowedTypes() []string {
	types := make([]string, 0, len(allowedMimeTypes))
	for t := range allowedMimeTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
