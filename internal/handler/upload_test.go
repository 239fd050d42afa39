package handler

import (
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/pagecraft/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestUploadOfDocument(t *testing.T) {
	ev, fileID, size := uploadOf(&models.Message{
		ID: 7,
		Document: &models.Document{
			FileID:   "doc-1",
			FileName: "report.pdf",
			MimeType: "application/pdf",
			FileSize: 2048,
		},
	})
	assert.Equal(t, "doc-1", fileID)
	assert.Equal(t, int64(2048), size)
	assert.Equal(t, "report.pdf", ev.Filename)
	assert.Equal(t, 7, ev.MessageID)
	assert.Empty(t, ev.DeclaredKind)
}

func TestUploadOfUnnamedDocument(t *testing.T) {
	ev, _, _ := uploadOf(&models.Message{ID: 9, Document: &models.Document{FileID: "x"}})
	assert.Equal(t, "file_9", ev.Filename)
}

func TestUploadOfPhotoUsesLargestSize(t *testing.T) {
	ev, fileID, size := uploadOf(&models.Message{
		ID: 3,
		Photo: []models.PhotoSize{
			{FileID: "small", FileSize: 100},
			{FileID: "large", FileSize: 900},
		},
	})
	assert.Equal(t, "large", fileID)
	assert.Equal(t, int64(900), size)
	assert.Equal(t, "photo_3.jpg", ev.Filename)
	assert.Equal(t, domain.KindImage, ev.DeclaredKind)
}

func TestMatchers(t *testing.T) {
	h := &Handler{botUsername: "PageCraftBot"}
	assert.True(t, h.isCommand(&models.Update{Message: &models.Message{Text: "/merge"}}))
	assert.True(t, h.isCommand(&models.Update{Message: &models.Message{Text: "/clear@PageCraftBot"}}))
	assert.False(t, h.isCommand(&models.Update{Message: &models.Message{Text: "/clear@SomeOtherBot"}}))
	assert.False(t, h.isCommand(&models.Update{Message: &models.Message{Text: "merge"}}))
	assert.False(t, h.isCommand(&models.Update{}))

	assert.True(t, isUpload(&models.Update{Message: &models.Message{Document: &models.Document{}}}))
	assert.True(t, isUpload(&models.Update{Message: &models.Message{Photo: []models.PhotoSize{{}}}}))
	assert.False(t, isUpload(&models.Update{Message: &models.Message{Text: "hi"}}))
}
