package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/set-night/pagecraft/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	engine *Engine
	sink   *fakeSink
	pdf    *fakePDF
	stats  *Stats
}

func newEngineFixture(trackOutputs bool) *engineFixture {
	f := newOrchestratorFixture()
	stats := NewStats()
	orch := NewOrchestrator(Adapters{
		PDF:       f.pdf,
		Raster:    f.raster,
		Documents: f.docs,
		Images:    fakeImages{},
	}, OrchestratorConfig{
		MaxTotalBytes:    1 << 20,
		MaxRasterPages:   20,
		OperationTimeout: 5 * time.Second,
		MaxConcurrent:    4,
	}, stats, nil)

	store := NewSessionStore(testLimits(), nil)
	return &engineFixture{
		engine: NewEngine(store, orch, stats, EngineConfig{TrackOutputs: trackOutputs, BundleImagesAbove: 1}, nil),
		sink:   &fakeSink{},
		pdf:    f.pdf,
		stats:  stats,
	}
}

func (f *engineFixture) upload(t *testing.T, name string, pages, messageID int) {
	t.Helper()
	err := f.engine.HandleUpload(context.Background(), f.sink, UploadEvent{
		UserID:    1,
		ChatID:    100,
		MessageID: messageID,
		Filename:  name,
		MimeType:  domain.MimePDF,
		Content:   fakeDoc(name, pages),
	})
	require.NoError(t, err)
}

func (f *engineFixture) command(t *testing.T, text string, replyTo int) {
	t.Helper()
	err := f.engine.HandleCommand(context.Background(), f.sink, CommandEvent{
		UserID:  1,
		ChatID:  100,
		Text:    text,
		ReplyTo: replyTo,
	})
	require.NoError(t, err)
}

func TestEngineUploadEchoesNumber(t *testing.T) {
	f := newEngineFixture(false)

	f.upload(t, "a.pdf", 1, 11)
	assert.Contains(t, f.sink.lastText(), "#1")
	f.upload(t, "b.pdf", 1, 12)
	assert.Contains(t, f.sink.lastText(), "#2")
	assert.Contains(t, f.sink.lastText(), "2/5")
}

func TestEngineUploadRejectsUnknownKind(t *testing.T) {
	f := newEngineFixture(false)

	err := f.engine.HandleUpload(context.Background(), f.sink, UploadEvent{
		UserID: 1, ChatID: 100, Filename: "song.mp3", MimeType: "audio/mpeg", Content: []byte("x"),
	})
	require.NoError(t, err)
	assert.Contains(t, f.sink.lastText(), "Unsupported file")
	assert.Empty(t, f.engine.Store().List(1))
}

func TestEngineMergeDeliversAndAbsorbs(t *testing.T) {
	f := newEngineFixture(true)
	f.upload(t, "a.pdf", 1, 11)
	f.upload(t, "b.pdf", 2, 12)

	f.command(t, "/merge 2,1", 0)

	require.Len(t, f.sink.artifacts, 1)
	sent := f.sink.artifacts[0]
	assert.Equal(t, "merged_2_1.pdf", sent.artifact.Name)
	assert.Equal(t, int64(100), sent.chatID)
	assert.Contains(t, f.sink.lastText(), "#3")

	list := f.engine.Store().List(1)
	require.Len(t, list, 3)
	assert.Equal(t, domain.OriginGenerated, list[2].Origin)
	assert.Equal(t, sent.messageID, list[2].MessageID)

	// Replying to the delivered result targets it.
	f.command(t, "/split 1-2", sent.messageID)
	require.Len(t, f.sink.artifacts, 2)
	pages, err := fakePages(f.sink.artifacts[1].artifact.Content)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.pdf1", "b.pdf2"}, pages)
}

func TestEngineWithoutTrackingKeepsSession(t *testing.T) {
	f := newEngineFixture(false)
	f.upload(t, "a.pdf", 1, 11)
	f.upload(t, "b.pdf", 1, 12)

	f.command(t, "/merge", 0)

	assert.Len(t, f.sink.artifacts, 1)
	assert.Len(t, f.engine.Store().List(1), 2)
}

func TestEngineFullSessionSkipsAbsorption(t *testing.T) {
	f := newEngineFixture(true)
	for i := 0; i < 5; i++ {
		f.upload(t, "p.pdf", 1, 20+i)
	}

	f.command(t, "/merge 1,2", 0)

	assert.Len(t, f.sink.artifacts, 1)
	assert.Contains(t, f.sink.lastText(), "not added")
	assert.Len(t, f.engine.Store().List(1), 5)
}

func TestEngineToImagesBundlesPages(t *testing.T) {
	f := newEngineFixture(true)
	f.upload(t, "deck.pdf", 3, 11)

	f.command(t, "/to_images", 0)

	require.Len(t, f.sink.artifacts, 1)
	bundle := f.sink.artifacts[0].artifact
	assert.Equal(t, "deck_pages.zip", bundle.Name)
	assert.Equal(t, domain.KindZip, bundle.Kind)

	zr, err := zip.NewReader(bytes.NewReader(bundle.Content), int64(len(bundle.Content)))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)
	assert.Equal(t, "deck_page_1.png", zr.File[0].Name)

	assert.Len(t, f.engine.Store().List(1), 1, "archives are not absorbed")
}

func TestEngineReportsErrorsAsText(t *testing.T) {
	f := newEngineFixture(false)

	f.command(t, "/merge", 0)
	assert.Contains(t, f.sink.lastText(), "no files")

	f.upload(t, "a.pdf", 10, 11)
	f.command(t, "/split 1 5-20", 0)
	assert.Contains(t, f.sink.lastText(), "Invalid page range")
	assert.Contains(t, f.sink.lastText(), "5-20")
	assert.Empty(t, f.sink.artifacts)

	f.command(t, "/mrege", 0)
	assert.Contains(t, f.sink.lastText(), "Did you mean /merge?")

	f.command(t, "/merge 7", 0)
	assert.Contains(t, f.sink.lastText(), "File not found")
}

func TestEngineClearAndList(t *testing.T) {
	f := newEngineFixture(false)
	f.upload(t, "a.pdf", 1, 11)

	f.command(t, "/list", 0)
	assert.Contains(t, f.sink.lastText(), "#1")

	f.command(t, "/clear", 0)
	f.command(t, "/list", 0)
	assert.Contains(t, f.sink.lastText(), "No files yet")

	f.upload(t, "b.pdf", 1, 12)
	assert.Contains(t, f.sink.lastText(), "#1")
}

func TestEngineStatIsAdminOnly(t *testing.T) {
	f := newEngineFixture(false)

	f.command(t, "/stat", 0)
	assert.Contains(t, f.sink.lastText(), "Unknown command")

	err := f.engine.HandleCommand(context.Background(), f.sink, CommandEvent{UserID: 1, ChatID: 100, Text: "/stat", IsAdmin: true})
	require.NoError(t, err)
	assert.Contains(t, f.sink.lastText(), "Statistics")
}

func TestEngineReturnsDeliveryErrors(t *testing.T) {
	f := newEngineFixture(true)
	f.upload(t, "a.pdf", 1, 11)
	f.upload(t, "b.pdf", 1, 12)
	f.sink.failSend = errors.New("telegram down")

	err := f.engine.HandleCommand(context.Background(), f.sink, CommandEvent{UserID: 1, ChatID: 100, Text: "/merge"})
	require.Error(t, err)
	assert.Len(t, f.engine.Store().List(1), 2)
}

func TestEngineListTextCountsEntries(t *testing.T) {
	f := newEngineFixture(false)

	text, n := f.engine.ListText(1)
	assert.Zero(t, n)
	assert.Contains(t, text, "No files yet")

	f.upload(t, "a.pdf", 1, 10)
	f.upload(t, "b.pdf", 2, 11)

	text, n = f.engine.ListText(1)
	assert.Equal(t, 2, n)
	assert.Contains(t, text, "*#2* b.pdf")
}

func TestEngineReplyToReceiptTargetsFile(t *testing.T) {
	f := newEngineFixture(false)
	f.upload(t, "a.pdf", 3, 11)
	f.upload(t, "b.pdf", 3, 12)
	require.Len(t, f.sink.receipts, 2)

	// The receipt for #1 is not the user's upload message.
	f.command(t, "/split 2", f.sink.receipts[0])

	require.Len(t, f.sink.artifacts, 1)
	assert.Equal(t, "a_p2.pdf", f.sink.artifacts[0].artifact.Name)
}

func TestEngineRenameResendsUnderNewName(t *testing.T) {
	f := newEngineFixture(true)
	f.upload(t, "scan.pdf", 2, 11)

	f.command(t, "/rename Q3 report.pdf", f.sink.receipts[0])

	require.Len(t, f.sink.artifacts, 1)
	sent := f.sink.artifacts[0].artifact
	assert.Equal(t, "Q3 report.pdf", sent.Name)
	assert.Equal(t, fakeDoc("scan.pdf", 2), sent.Content)
	assert.Contains(t, f.sink.lastText(), "Renamed")

	list := f.engine.Store().List(1)
	require.Len(t, list, 2)
	assert.Equal(t, "Q3 report.pdf", list[1].Name)
	assert.Equal(t, "scan.pdf", list[0].Name, "the original entry is untouched")
}
