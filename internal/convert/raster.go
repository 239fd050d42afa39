package convert

import (
	"context"
	"fmt"
	"strconv"
)

type rasterRequest struct {
	content []byte
	pages   int
}

// Rasterizer renders every page of a PDF to PNG with pdftoppm, mutool or
// Ghostscript, whichever is installed first.
type Rasterizer struct {
	chain *Chain[rasterRequest, [][]byte]
}

func NewRasterizer(opts Options) *Rasterizer {
	dpi := strconv.Itoa(opts.dpi())
	pdftoppm := tool(opts.Pdftoppm)
	mutool := tool(opts.Mutool)
	gs := tool(opts.Ghostscript)

	return &Rasterizer{
		chain: &Chain[rasterRequest, [][]byte]{
			Stage:   "pdf to images",
			Timeout: opts.Timeout,
			Logger:  opts.Logger,
			Strategies: []Strategy[rasterRequest, [][]byte]{
				{
					Name:      "pdftoppm",
					Available: pdftoppm.available,
					Run: rasterWith(pdftoppm, "page-*.png", func(in string) []string {
						return []string{"-png", "-r", dpi, in, "page"}
					}),
				},
				{
					Name:      "mutool",
					Available: mutool.available,
					Run: rasterWith(mutool, "page-*.png", func(in string) []string {
						return []string{"draw", "-q", "-r", dpi, "-o", "page-%03d.png", in}
					}),
				},
				{
					Name:      "ghostscript",
					Available: gs.available,
					Run: rasterWith(gs, "page-*.png", func(in string) []string {
						return []string{
							"-dSAFER", "-dBATCH", "-dNOPAUSE", "-dQUIET",
							"-sDEVICE=png16m", "-r" + dpi,
							"-sOutputFile=page-%03d.png", in,
						}
					}),
				},
			},
		},
	}
}

// Rasterize returns one PNG per page in page order. pages is the page
// count already read from the document and is used to verify the output.
func (r *Rasterizer) Rasterize(ctx context.Context, content []byte, pages int) ([][]byte, error) {
	return r.chain.Run(ctx, rasterRequest{content: content, pages: pages})
}

func rasterWith(t tool, pattern string, args func(in string) []string) func(context.Context, rasterRequest) ([][]byte, error) {
	return func(ctx context.Context, req rasterRequest) ([][]byte, error) {
		return withWorkDir(func(dir string) ([][]byte, error) {
			in, err := writeInput(dir, "in.pdf", req.content)
			if err != nil {
				return nil, err
			}
			if _, err := t.run(ctx, dir, args(in)...); err != nil {
				return nil, err
			}
			images, err := readMatches(dir, pattern)
			if err != nil {
				return nil, err
			}
			if req.pages > 0 && len(images) != req.pages {
				return nil, fmt.Errorf("%s rendered %d of %d pages", t.name(), len(images), req.pages)
			}
			if len(images) == 0 {
				return nil, fmt.Errorf("%s produced no images", t.name())
			}
			return images, nil
		})
	}
}
