package service

import (
	"testing"
	"time"

	"github.com/set-night/pagecraft/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, uploads ...Upload) *Session {
	t.Helper()
	limits := testLimits()
	limits.MaxFiles = 20
	sess := newSession(1, limits, time.Now())
	for _, up := range uploads {
		_, err := sess.Add(up, time.Now())
		require.NoError(t, err)
	}
	return sess
}

func imageUpload(name string, messageID int) Upload {
	return Upload{Filename: name, Kind: domain.KindImage, Content: []byte(name), MessageID: messageID}
}

func numbers(entries []*domain.FileEntry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Number
	}
	return out
}

func mustParse(t *testing.T, text string, replyTo int) domain.Command {
	t.Helper()
	cmd, err := ParseCommand(text, replyTo)
	require.NoError(t, err)
	return cmd
}

func TestResolveExplicitIndicesKeepOrder(t *testing.T) {
	sess := newTestSession(t, pdfUpload("a.pdf", 1, 0), pdfUpload("b.pdf", 1, 0), pdfUpload("c.pdf", 1, 0))

	target, err := Resolve(mustParse(t, "/merge 3,1,3", 0), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 3}, numbers(target.Entries))
	assert.False(t, target.FromReply)
}

func TestResolveUnknownIndexFailsWhole(t *testing.T) {
	sess := newTestSession(t, pdfUpload("a.pdf", 1, 0), pdfUpload("b.pdf", 1, 0))

	target, err := Resolve(mustParse(t, "/merge 1,9,2", 0), sess)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, target.Entries)

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "#9", de.Subject)
}

func TestResolveAllInUploadOrder(t *testing.T) {
	sess := newTestSession(t, pdfUpload("a.pdf", 1, 0), imageUpload("b.png", 0), pdfUpload("c.pdf", 1, 0))

	target, err := Resolve(mustParse(t, "/merge", 0), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, numbers(target.Entries))
}

func TestResolveEmptySession(t *testing.T) {
	sess := newTestSession(t)

	for _, text := range []string{"/merge", "/to_images", "/split 1-2", "/combine_images"} {
		_, err := Resolve(mustParse(t, text, 0), sess)
		assert.ErrorIs(t, err, domain.ErrEmptySession, text)
	}
}

func TestResolveReplyWithEmptyExpression(t *testing.T) {
	sess := newTestSession(t, pdfUpload("a.pdf", 3, 0), pdfUpload("b.pdf", 3, 0))
	sess.TrackMessage(900, 1)

	target, err := Resolve(mustParse(t, "/to_images", 900), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, numbers(target.Entries))
	assert.True(t, target.FromReply)
}

func TestResolveExplicitExpressionIgnoresReply(t *testing.T) {
	sess := newTestSession(t, pdfUpload("a.pdf", 3, 0), pdfUpload("b.pdf", 3, 0))
	sess.TrackMessage(900, 1)

	target, err := Resolve(mustParse(t, "/to_images 2", 900), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, numbers(target.Entries))
	assert.False(t, target.FromReply)
}

func TestResolveReplyToGeneratedFile(t *testing.T) {
	sess := newTestSession(t, pdfUpload("a.pdf", 2, 0), pdfUpload("b.pdf", 2, 0))
	_, err := sess.Add(Upload{
		Filename:  "merged_1_2.pdf",
		Kind:      domain.KindPDF,
		Content:   fakeDoc("m", 4),
		MessageID: 4242,
		Origin:    domain.OriginGenerated,
	}, time.Now())
	require.NoError(t, err)

	target, err := Resolve(mustParse(t, "/merge", 4242), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, numbers(target.Entries))

	target, err = Resolve(mustParse(t, "/merge 1,2", 4242), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, numbers(target.Entries))
}

func TestResolveUntrackedReplyFallsBackToDefault(t *testing.T) {
	sess := newTestSession(t, pdfUpload("a.pdf", 2, 0), pdfUpload("b.pdf", 2, 0))

	target, err := Resolve(mustParse(t, "/split 1-2", 12345), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, numbers(target.Entries))
	assert.False(t, target.FromReply)
}

func TestResolveSingleTargetDefaults(t *testing.T) {
	sess := newTestSession(t,
		pdfUpload("a.pdf", 2, 0),
		Upload{Filename: "notes.docx", Kind: domain.KindWord, Content: []byte("docx")},
		imageUpload("photo.jpg", 0),
		pdfUpload("b.pdf", 2, 0),
	)

	target, err := Resolve(mustParse(t, "/split 1", 0), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, numbers(target.Entries), "latest pdf")
	assert.Equal(t, []domain.PageToken{{Raw: "1", From: 1, To: 1}}, target.Pages)

	target, err = Resolve(mustParse(t, "/to_pdf", 0), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, numbers(target.Entries), "latest convertible")

	target, err = Resolve(mustParse(t, "/combine_images", 0), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, numbers(target.Entries))
}

func TestResolveNoApplicableFile(t *testing.T) {
	sess := newTestSession(t, imageUpload("a.png", 0))

	_, err := Resolve(mustParse(t, "/to_images", 0), sess)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveMergeWith(t *testing.T) {
	sess := newTestSession(t,
		pdfUpload("a.pdf", 1, 0),
		pdfUpload("b.pdf", 1, 0),
		imageUpload("c.png", 0),
		pdfUpload("d.pdf", 1, 501),
	)

	t.Run("anchor then explicit list", func(t *testing.T) {
		target, err := Resolve(mustParse(t, "/merge_with 2,1", 501), sess)
		require.NoError(t, err)
		assert.Equal(t, []int{4, 2, 1}, numbers(target.Entries))
		assert.True(t, target.FromReply)
	})

	t.Run("anchor then every other pdf", func(t *testing.T) {
		target, err := Resolve(mustParse(t, "/merge_with", 501), sess)
		require.NoError(t, err)
		assert.Equal(t, []int{4, 1, 2}, numbers(target.Entries))
	})

	t.Run("reply required", func(t *testing.T) {
		_, err := Resolve(mustParse(t, "/merge_with 1", 0), sess)
		assert.ErrorIs(t, err, domain.ErrReplyRequired)
	})

	t.Run("untracked reply", func(t *testing.T) {
		_, err := Resolve(mustParse(t, "/merge_with 1", 77), sess)
		assert.ErrorIs(t, err, domain.ErrReplyRequired)
	})

	t.Run("unknown index", func(t *testing.T) {
		_, err := Resolve(mustParse(t, "/merge_with 9", 501), sess)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestResolveRenameDefaultsToLatestFile(t *testing.T) {
	sess := newTestSession(t, pdfUpload("a.pdf", 1, 11), imageUpload("b.png", 12))

	target, err := Resolve(mustParse(t, "/rename cover", 0), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, numbers(target.Entries))
	assert.Equal(t, "cover", target.Name)

	target, err = Resolve(mustParse(t, "/rename cover", 11), sess)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, numbers(target.Entries))
}
