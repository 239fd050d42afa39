package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/set-night/pagecraft/internal/domain"
)

// Fake documents are "PDF:" followed by page labels joined with "|".
const fakePrefix = "PDF:"

func fakeDoc(name string, pages int) []byte {
	labels := make([]string, pages)
	for i := range labels {
		labels[i] = fmt.Sprintf("%s%d", name, i+1)
	}
	return []byte(fakePrefix + strings.Join(labels, "|"))
}

func fakePages(content []byte) ([]string, error) {
	s := string(content)
	if !strings.HasPrefix(s, fakePrefix) {
		return nil, fmt.Errorf("%w: no header", domain.ErrInvalidFormat)
	}
	body := strings.TrimPrefix(s, fakePrefix)
	if body == "" {
		return nil, nil
	}
	return strings.Split(body, "|"), nil
}

type fakePDF struct {
	mu     sync.Mutex
	merges [][]string
	panics bool
}

func (f *fakePDF) PageCount(_ context.Context, content []byte) (int, error) {
	if f.panics {
		panic("pdf library blew up")
	}
	pages, err := fakePages(content)
	return len(pages), err
}

func (f *fakePDF) Merge(_ context.Context, inputs [][]byte) ([]byte, error) {
	var all []string
	for _, in := range inputs {
		pages, err := fakePages(in)
		if err != nil {
			return nil, err
		}
		all = append(all, pages...)
	}
	f.mu.Lock()
	f.merges = append(f.merges, all)
	f.mu.Unlock()
	return []byte(fakePrefix + strings.Join(all, "|")), nil
}

func (f *fakePDF) Extract(_ context.Context, content []byte, from, to int) ([]byte, error) {
	pages, err := fakePages(content)
	if err != nil {
		return nil, err
	}
	return []byte(fakePrefix + strings.Join(pages[from-1:to], "|")), nil
}

type fakeRaster struct {
	calls int
}

func (f *fakeRaster) Rasterize(_ context.Context, content []byte, pages int) ([][]byte, error) {
	f.calls++
	labels, err := fakePages(content)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(labels))
	for i, l := range labels {
		out[i] = []byte("PNG:" + l)
	}
	return out, nil
}

type fakeDocs struct {
	err error
}

func (f *fakeDocs) ToPDF(_ context.Context, _ []byte, filename string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(fakePrefix + "doc-" + filename), nil
}

type fakeImages struct{}

func (fakeImages) ImagesToPDF(_ context.Context, images [][]byte) ([]byte, error) {
	labels := make([]string, len(images))
	for i, img := range images {
		labels[i] = "img-" + string(img)
	}
	return []byte(fakePrefix + strings.Join(labels, "|")), nil
}

type recordingRecorder struct {
	mu      sync.Mutex
	records []domain.OperationRecord
}

func (r *recordingRecorder) Record(_ context.Context, rec domain.OperationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recordingRecorder) last() domain.OperationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[len(r.records)-1]
}

type sentArtifact struct {
	chatID    int64
	artifact  domain.Artifact
	messageID int
}

type fakeSink struct {
	mu        sync.Mutex
	texts     []string
	artifacts []sentArtifact
	nextID    int
	receipts  []int
	failSend  error
}

func (s *fakeSink) SendText(_ context.Context, _ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *fakeSink) SendReceipt(_ context.Context, _ int64, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	s.nextID++
	s.receipts = append(s.receipts, 1000+s.nextID)
	return 1000 + s.nextID, nil
}

func (s *fakeSink) SendArtifact(_ context.Context, chatID int64, a domain.Artifact) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSend != nil {
		return 0, s.failSend
	}
	s.nextID++
	id := 1000 + s.nextID
	s.artifacts = append(s.artifacts, sentArtifact{chatID: chatID, artifact: a, messageID: id})
	return id, nil
}

func (s *fakeSink) lastText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.texts) == 0 {
		return ""
	}
	return s.texts[len(s.texts)-1]
}

func testLimits() SessionLimits {
	return SessionLimits{
		MaxFiles:      5,
		MaxFileBytes:  1024,
		MaxTotalBytes: 4096,
		TTL:           30 * time.Minute,
	}
}

func pdfUpload(name string, pages int, messageID int) Upload {
	return Upload{
		Filename:  name,
		Kind:      domain.KindPDF,
		Content:   fakeDoc(strings.TrimSuffix(name, ".pdf"), pages),
		MessageID: messageID,
	}
}
