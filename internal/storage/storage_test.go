package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

func TestSniff_KeepsWholeStream(t *testing.T) {
	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 2048)...)

	s, err := Sniff(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "image/png", s.ContentType)
	assert.Equal(t, ".png", s.Extension)

	all, err := io.ReadAll(s.Reader)
	require.NoError(t, err)
	assert.Equal(t, content, all)
}

func TestSniff_Rejects(t *testing.T) {
	_, err := Sniff(strings.NewReader(""))
	assert.True(t, apperror.IsValidation(err))

	_, err = Sniff(strings.NewReader("just some text"))
	assert.True(t, apperror.IsValidation(err))
}

func TestSniff_PDF(t *testing.T) {
	s, err := Sniff(strings.NewReader("%PDF-1.7\n%âãÏÓ\n1 0 obj"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", s.ContentType)
}

func TestLocalStore_Store(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root, "http://localhost:8080/media/", 1)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(0, 42) }

	owner := uuid.New()
	url, err := s.Store(context.Background(), bytes.NewReader(pngHeader), gateway.FileMeta{
		OwnerID: owner, Name: "../../etc/design v2.png", ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/"+owner.String()+"/42_design_v2.png", url)

	data, err := os.ReadFile(filepath.Join(root, owner.String(), "42_design_v2.png"))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestLocalStore_SizeLimit(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root, "/media", 1)
	require.NoError(t, err)

	owner := uuid.New()
	_, err = s.Store(context.Background(), bytes.NewReader(make([]byte, 1024*1024+1)), gateway.FileMeta{OwnerID: owner, Name: "big.bin"})
	assert.True(t, apperror.IsValidation(err))

	entries, _ := os.ReadDir(filepath.Join(root, owner.String()))
	assert.Empty(t, entries)
}

func TestMinioStore_PublicURL(t *testing.T) {
	s := &MinioStore{cfg: MinioConfig{Endpoint: "minio:9000", Bucket: "escrow", UseSSL: true}}
	assert.Equal(t, "https://minio:9000/escrow/a/b.png", s.publicURL("a/b.png"))

	s.cfg.PublicURL = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/escrow/a/b.png", s.publicURL("a/b.png"))
}
