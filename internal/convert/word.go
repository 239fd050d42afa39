package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/set-night/pagecraft/internal/domain"
)

type documentRequest struct {
	content  []byte
	filename string
}

// DocumentConverter turns word-processing documents into PDF. LibreOffice
// keeps the layout; the built-in fallback only keeps the text of .docx
// files.
type DocumentConverter struct {
	chain *Chain[documentRequest, []byte]
}

func NewDocumentConverter(opts Options) *DocumentConverter {
	soffice := tool(opts.Soffice)

	return &DocumentConverter{
		chain: &Chain[documentRequest, []byte]{
			Stage:   "document to pdf",
			Timeout: opts.Timeout,
			Logger:  opts.Logger,
			Strategies: []Strategy[documentRequest, []byte]{
				{Name: "libreoffice", Available: soffice.available, Run: sofficeToPDF(soffice)},
				{Name: "docx-text", Run: docxTextToPDF},
			},
		},
	}
}

func (c *DocumentConverter) ToPDF(ctx context.Context, content []byte, filename string) ([]byte, error) {
	return c.chain.Run(ctx, documentRequest{content: content, filename: filename})
}

func sofficeToPDF(soffice tool) func(context.Context, documentRequest) ([]byte, error) {
	return func(ctx context.Context, req documentRequest) ([]byte, error) {
		return withWorkDir(func(dir string) ([]byte, error) {
			ext := strings.ToLower(filepath.Ext(req.filename))
			if ext == "" {
				ext = ".docx"
			}
			in, err := writeInput(dir, "input"+ext, req.content)
			if err != nil {
				return nil, err
			}

			// A private profile lets parallel conversions run without
			// fighting over the user's LibreOffice lock.
			profile := "-env:UserInstallation=file://" + filepath.ToSlash(filepath.Join(dir, "profile"))
			if _, err := soffice.run(ctx, dir, profile,
				"--headless", "--norestore", "--convert-to", "pdf", "--outdir", dir, in); err != nil {
				return nil, err
			}

			out, err := os.ReadFile(filepath.Join(dir, "input.pdf"))
			if err != nil {
				return nil, fmt.Errorf("libreoffice produced no pdf: %w", err)
			}
			return out, nil
		})
	}
}

func docxTextToPDF(ctx context.Context, req documentRequest) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(req.filename), ".doc") {
		return nil, fmt.Errorf("%w: legacy .doc needs libreoffice", domain.ErrToolUnavailable)
	}
	return runBlocking(ctx, func() ([]byte, error) {
		paragraphs, err := docxParagraphs(req.content)
		if err != nil {
			return nil, err
		}
		return renderText(paragraphs)
	})
}
