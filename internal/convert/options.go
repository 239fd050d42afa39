package convert

import (
	"log/slog"
	"time"

	"github.com/set-night/pagecraft/internal/config"
)

// Options configures every adapter in the package.
type Options struct {
	Timeout time.Duration
	DPI     int

	QPDF        string
	Pdftoppm    string
	Mutool      string
	Ghostscript string
	Soffice     string

	Logger *slog.Logger
}

// OptionsFromConfig maps the bot configuration onto adapter options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Timeout:     cfg.ConversionTimeout,
		DPI:         cfg.RasterDPI,
		QPDF:        cfg.QPDFPath,
		Pdftoppm:    cfg.PdftoppmPath,
		Mutool:      cfg.MutoolPath,
		Ghostscript: cfg.GhostPath,
		Soffice:     cfg.SofficePath,
		Logger:      logger,
	}
}

func (o Options) dpi() int {
	if o.DPI <= 0 {
		return 110
	}
	return o.DPI
}
