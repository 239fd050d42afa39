package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/set-night/pagecraft/internal/domain"
)

func init() {
	// pdfcpu must not read or create a config dir under $HOME.
	api.DisableConfigDir()
}

func pdfcpuConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

type extractRequest struct {
	content  []byte
	from, to int
}

// PDFEngine counts, merges and extracts PDF pages with pdfcpu, falling
// back to qpdf.
type PDFEngine struct {
	count   *Chain[[]byte, int]
	merge   *Chain[[][]byte, []byte]
	extract *Chain[extractRequest, []byte]
}

func NewPDFEngine(opts Options) *PDFEngine {
	qpdf := tool(opts.QPDF)

	return &PDFEngine{
		count: &Chain[[]byte, int]{
			Stage:   "pdf page count",
			Timeout: opts.Timeout,
			Logger:  opts.Logger,
			Strategies: []Strategy[[]byte, int]{
				{Name: "pdfcpu", Run: pdfcpuPageCount},
				{Name: "qpdf", Available: qpdf.available, Run: qpdfPageCount(qpdf)},
			},
		},
		merge: &Chain[[][]byte, []byte]{
			Stage:   "pdf merge",
			Timeout: opts.Timeout,
			Logger:  opts.Logger,
			Strategies: []Strategy[[][]byte, []byte]{
				{Name: "pdfcpu", Run: pdfcpuMerge},
				{Name: "qpdf", Available: qpdf.available, Run: qpdfMerge(qpdf)},
			},
		},
		extract: &Chain[extractRequest, []byte]{
			Stage:   "pdf page extraction",
			Timeout: opts.Timeout,
			Logger:  opts.Logger,
			Strategies: []Strategy[extractRequest, []byte]{
				{Name: "pdfcpu", Run: pdfcpuExtract},
				{Name: "qpdf", Available: qpdf.available, Run: qpdfExtract(qpdf)},
			},
		},
	}
}

// PageCount opens the document and returns its number of pages. Input
// that no strategy can read yields domain.ErrInvalidFormat.
func (e *PDFEngine) PageCount(ctx context.Context, content []byte) (int, error) {
	if !looksLikePDF(content) {
		return 0, fmt.Errorf("%w: missing %%PDF header", domain.ErrInvalidFormat)
	}
	return e.count.Run(ctx, content)
}

// Merge concatenates documents in the given order.
func (e *PDFEngine) Merge(ctx context.Context, inputs [][]byte) ([]byte, error) {
	return e.merge.Run(ctx, inputs)
}

// Extract returns a new document holding pages from..to (1-indexed, inclusive).
func (e *PDFEngine) Extract(ctx context.Context, content []byte, from, to int) ([]byte, error) {
	return e.extract.Run(ctx, extractRequest{content: content, from: from, to: to})
}

func looksLikePDF(content []byte) bool {
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

func pdfcpuPageCount(ctx context.Context, content []byte) (int, error) {
	n, err := runBlocking(ctx, func() (int, error) {
		return api.PageCount(bytes.NewReader(content), pdfcpuConfig())
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidFormat, err)
	}
	return n, nil
}

func pdfcpuMerge(ctx context.Context, inputs [][]byte) ([]byte, error) {
	return runBlocking(ctx, func() ([]byte, error) {
		readers := make([]io.ReadSeeker, len(inputs))
		for i, in := range inputs {
			readers[i] = bytes.NewReader(in)
		}
		var buf bytes.Buffer
		if err := api.MergeRaw(readers, &buf, false, pdfcpuConfig()); err != nil {
			return nil, fmt.Errorf("pdfcpu merge: %w", err)
		}
		return buf.Bytes(), nil
	})
}

func pdfcpuExtract(ctx context.Context, req extractRequest) ([]byte, error) {
	return runBlocking(ctx, func() ([]byte, error) {
		var buf bytes.Buffer
		selection := []string{pageSelection(req.from, req.to)}
		if err := api.Trim(bytes.NewReader(req.content), &buf, selection, pdfcpuConfig()); err != nil {
			return nil, fmt.Errorf("pdfcpu trim: %w", err)
		}
		return buf.Bytes(), nil
	})
}

func qpdfPageCount(qpdf tool) func(context.Context, []byte) (int, error) {
	return func(ctx context.Context, content []byte) (int, error) {
		return withWorkDir(func(dir string) (int, error) {
			in, err := writeInput(dir, "in.pdf", content)
			if err != nil {
				return 0, err
			}
			out, err := qpdf.run(ctx, dir, "--warning-exit-0", "--show-npages", in)
			if err != nil {
				if isExitError(err) {
					return 0, fmt.Errorf("%w: %v", domain.ErrInvalidFormat, err)
				}
				return 0, err
			}
			n, err := strconv.Atoi(strings.TrimSpace(string(out)))
			if err != nil {
				return 0, fmt.Errorf("qpdf page count output %q: %w", out, err)
			}
			return n, nil
		})
	}
}

func qpdfMerge(qpdf tool) func(context.Context, [][]byte) ([]byte, error) {
	return func(ctx context.Context, inputs [][]byte) ([]byte, error) {
		return withWorkDir(func(dir string) ([]byte, error) {
			args := []string{"--warning-exit-0", "--empty", "--pages"}
			for i, content := range inputs {
				in, err := writeInput(dir, fmt.Sprintf("in-%03d.pdf", i), content)
				if err != nil {
					return nil, err
				}
				args = append(args, in)
			}
			out := filepath.Join(dir, "out.pdf")
			args = append(args, "--", out)

			if _, err := qpdf.run(ctx, dir, args...); err != nil {
				return nil, err
			}
			return os.ReadFile(out)
		})
	}
}

func qpdfExtract(qpdf tool) func(context.Context, extractRequest) ([]byte, error) {
	return func(ctx context.Context, req extractRequest) ([]byte, error) {
		return withWorkDir(func(dir string) ([]byte, error) {
			in, err := writeInput(dir, "in.pdf", req.content)
			if err != nil {
				return nil, err
			}
			out := filepath.Join(dir, "out.pdf")
			if _, err := qpdf.run(ctx, dir, "--warning-exit-0", in,
				"--pages", ".", pageSelection(req.from, req.to), "--", out); err != nil {
				return nil, err
			}
			return os.ReadFile(out)
		})
	}
}

func pageSelection(from, to int) string {
	if from == to {
		return strconv.Itoa(from)
	}
	return fmt.Sprintf("%d-%d", from, to)
}
