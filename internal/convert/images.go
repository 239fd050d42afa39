package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/set-night/pagecraft/internal/domain"
)

// ImageConverter builds a PDF with one page per image.
type ImageConverter struct {
	chain *Chain[[][]byte, []byte]
}

func NewImageConverter(opts Options) *ImageConverter {
	return &ImageConverter{
		chain: &Chain[[][]byte, []byte]{
			Stage:   "images to pdf",
			Timeout: opts.Timeout,
			Logger:  opts.Logger,
			Strategies: []Strategy[[][]byte, []byte]{
				{Name: "pdfcpu", Run: pdfcpuImportImages},
				{Name: "fpdf", Run: fpdfImages},
			},
		},
	}
}

func (c *ImageConverter) ImagesToPDF(ctx context.Context, images [][]byte) ([]byte, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no images", domain.ErrInsufficientInput)
	}
	return c.chain.Run(ctx, images)
}

func pdfcpuImportImages(ctx context.Context, images [][]byte) ([]byte, error) {
	return runBlocking(ctx, func() ([]byte, error) {
		readers := make([]io.Reader, len(images))
		for i, img := range images {
			readers[i] = bytes.NewReader(img)
		}
		var buf bytes.Buffer
		if err := api.ImportImages(nil, &buf, readers, pdfcpu.DefaultImportConfig(), pdfcpuConfig()); err != nil {
			return nil, fmt.Errorf("pdfcpu import images: %w", err)
		}
		return buf.Bytes(), nil
	})
}

// fpdf image types keyed by sniffed MIME type.
var fpdfImageTypes = map[string]string{
	"image/png":  "PNG",
	"image/jpeg": "JPG",
	"image/gif":  "GIF",
}

const (
	a4Width  = 210.0
	a4Height = 297.0
	margin   = 10.0
)

func fpdfImages(ctx context.Context, images [][]byte) ([]byte, error) {
	return runBlocking(ctx, func() ([]byte, error) {
		pdf := fpdf.New("P", "mm", "A4", "")
		pdf.SetAutoPageBreak(false, 0)

		for i, img := range images {
			mime := http.DetectContentType(img)
			imageType, ok := fpdfImageTypes[mime]
			if !ok {
				return nil, fmt.Errorf("%w: image %d is %s", domain.ErrInvalidFormat, i+1, mime)
			}

			name := fmt.Sprintf("img-%d", i)
			opts := fpdf.ImageOptions{ImageType: imageType}
			info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
			if pdf.Err() {
				return nil, fmt.Errorf("%w: image %d: %v", domain.ErrInvalidFormat, i+1, pdf.Error())
			}

			w, h := fitInto(info.Width(), info.Height(), a4Width-2*margin, a4Height-2*margin)
			pdf.AddPage()
			pdf.ImageOptions(name, (a4Width-w)/2, (a4Height-h)/2, w, h, false, opts, 0, "")
		}

		var buf bytes.Buffer
		if err := pdf.Output(&buf); err != nil {
			return nil, fmt.Errorf("render pdf: %w", err)
		}
		return buf.Bytes(), nil
	})
}

// fitInto scales w x h down (or up) to the largest size inside maxW x maxH
// keeping the aspect ratio.
func fitInto(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	scale := maxW / w
	if s := maxH / h; s < scale {
		scale = s
	}
	return w * scale, h * scale
}
