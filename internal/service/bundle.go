package service

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"github.com/set-night/pagecraft/internal/domain"
)

// Bundle packs artifacts into one zip archive, preserving their order and
// names.
func Bundle(name string, artifacts []domain.Artifact) (domain.Artifact, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	modified := time.Now()
	for _, a := range artifacts {
		// PNG and PDF are already compressed.
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     a.Name,
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			return domain.Artifact{}, fmt.Errorf("add %s to archive: %w", a.Name, err)
		}
		if _, err := w.Write(a.Content); err != nil {
			return domain.Artifact{}, fmt.Errorf("write %s to archive: %w", a.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return domain.Artifact{}, fmt.Errorf("close archive: %w", err)
	}

	return domain.Artifact{
		Name:     name,
		Kind:     domain.KindZip,
		MimeType: domain.MimeZip,
		Content:  buf.Bytes(),
	}, nil
}
