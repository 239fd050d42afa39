package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/set-night/pagecraft/internal/config"
)

// ErrFileTooLarge is returned when a download exceeds its size limit.
var ErrFileTooLarge = errors.New("file too large")

// DownloadFile downloads a file from Telegram by file ID. At most limit bytes
// are read; larger files fail with ErrFileTooLarge.
func DownloadFile(ctx context.Context, b *bot.Bot, fileID string, limit int64) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DownloadTimeout)
	defer cancel()

	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("get file: %w", err)
	}
	if limit > 0 && file.FileSize > limit {
		return nil, "", ErrFileTooLarge
	}

	fileURL := b.FileDownloadLink(file)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, limit)
	if err != nil {
		return nil, "", err
	}
	return data, file.FilePath, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read file data: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file data: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
