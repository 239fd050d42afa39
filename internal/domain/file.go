package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
	KindWord  Kind = "word-document"
	KindZip   Kind = "zip"
)

type Origin string

const (
	OriginUploaded  Origin = "uploaded"
	OriginGenerated Origin = "generated"
)

// FileEntry is one stored file in a user's session. Content is never
// modified after the entry is stored.
type FileEntry struct {
	Number     int
	Name       string
	Kind       Kind
	MimeType   string
	Content    []byte
	Size       int64
	UploadedAt time.Time
	MessageID  int
	Origin     Origin
}

// Summary returns a copy of the entry without its content.
func (e *FileEntry) Summary() FileEntry {
	s := *e
	s.Content = nil
	return s
}

func (e *FileEntry) Label() string {
	return fmt.Sprintf("#%d %s", e.Number, e.Name)
}

// BaseName returns the entry name without its extension.
func (e *FileEntry) BaseName() string {
	return strings.TrimSuffix(e.Name, filepath.Ext(e.Name))
}

// Artifact is an operation output. It is not owned by any session until
// the engine re-absorbs it.
type Artifact struct {
	Name     string
	Kind     Kind
	MimeType string
	Content  []byte
}

var imageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
}

const (
	MimePDF  = "application/pdf"
	MimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDoc  = "application/msword"
	MimePNG  = "image/png"
	MimeZip  = "application/zip"
)

// DetectKind classifies an upload by MIME type, falling back to the file
// extension when the declared type is missing or generic.
func DetectKind(filename, mimeType string) (Kind, bool) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mimeType == MimePDF:
		return KindPDF, true
	case mimeType == MimeDocx || mimeType == MimeDoc:
		return KindWord, true
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage, true
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return KindPDF, true
	case ".docx", ".doc", ".odt", ".rtf":
		return KindWord, true
	}
	if _, ok := imageExts[ext]; ok {
		return KindImage, true
	}
	return "", false
}

// MimeTypeFor returns a best-effort MIME type for a filename.
func MimeTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if m, ok := imageExts[ext]; ok {
		return m
	}
	switch ext {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDocx
	case ".doc":
		return MimeDoc
	case ".zip":
		return MimeZip
	}
	return "application/octet-stream"
}
