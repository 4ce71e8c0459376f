package generator

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Archiver 把生成的 base64 图片另存到本地目录，便于人工核对结果。
type Archiver struct {
	dir string
	now func() time.Time
}

// NewArchiver returns nil when dir is empty, which disables archiving.
func NewArchiver(dir string) *Archiver {
	if dir == "" {
		return nil
	}
	return &Archiver{dir: dir, now: time.Now}
}

// Save writes img to <dir>/<kind>-<unix-ms>.png. URL results are skipped.
func (a *Archiver) Save(kind string, img ImageResult) (string, error) {
	if a == nil || img.Format != ImageFormatBase64 {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(img.ImageData)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(a.dir, fmt.Sprintf("%s-%d.png", kind, a.now().UnixMilli()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
