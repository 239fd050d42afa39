package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/set-night/pagecraft/internal/config"
	"github.com/set-night/pagecraft/internal/domain"
)

// PDFEngine reads and rewrites PDF documents.
type PDFEngine interface {
	PageCount(ctx context.Context, content []byte) (int, error)
	Merge(ctx context.Context, inputs [][]byte) ([]byte, error)
	Extract(ctx context.Context, content []byte, from, to int) ([]byte, error)
}

// Rasterizer renders PDF pages to PNG.
type Rasterizer interface {
	Rasterize(ctx context.Context, content []byte, pages int) ([][]byte, error)
}

type DocumentConverter interface {
	ToPDF(ctx context.Context, content []byte, filename string) ([]byte, error)
}

type ImageConverter interface {
	ImagesToPDF(ctx context.Context, images [][]byte) ([]byte, error)
}

// OperationRecorder receives one record per finished operation.
type OperationRecorder interface {
	Record(ctx context.Context, rec domain.OperationRecord)
}

// Adapters groups the conversion back ends the orchestrator drives.
type Adapters struct {
	PDF       PDFEngine
	Raster    Rasterizer
	Documents DocumentConverter
	Images    ImageConverter
}

type OrchestratorConfig struct {
	MaxTotalBytes    int64
	MaxOutputBytes   int64
	MaxRasterPages   int
	OperationTimeout time.Duration
	MaxConcurrent    int64
}

// Outcome is what a successful operation produced.
type Outcome struct {
	ID        string
	Artifacts []domain.Artifact
}

type Orchestrator struct {
	adapters Adapters
	cfg      OrchestratorConfig
	sem      *semaphore.Weighted
	recorder OperationRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrchestrator(adapters Adapters, cfg OrchestratorConfig, recorder OperationRecorder, logger *slog.Logger) *Orchestrator {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		adapters: adapters,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute runs one operation to completion or failure. Every failure is
// returned as *domain.OperationError; nothing is retried.
func (o *Orchestrator) Execute(ctx context.Context, userID int64, op domain.Operation, target domain.ResolvedTarget, sessionBytes int64) (out *Outcome, err error) {
	rec := domain.OperationRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Op:        op,
		Inputs:    len(target.Entries),
		StartedAt: o.now(),
	}
	log := o.logger.With("op", op, "op_id", rec.ID, "user_id", userID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("operation panicked", "panic", r)
			out, err = nil, fmt.Errorf("internal failure: %v", r)
		}

		rec.Duration = o.now().Sub(rec.StartedAt)
		if err != nil {
			rec.State = domain.StateFailed
			if kind := domain.KindOf(err); kind != nil {
				rec.ErrorKind = kind.Error()
			} else {
				rec.ErrorKind = "internal"
			}
			err = &domain.OperationError{Op: op, ID: rec.ID, Err: err}
			log.Warn("operation failed", "error", err, "duration", rec.Duration)
		} else {
			rec.State = domain.StateSucceeded
			rec.Outputs = len(out.Artifacts)
			for _, a := range out.Artifacts {
				rec.OutputBytes += int64(len(a.Content))
			}
			log.Info("operation succeeded",
				"outputs", rec.Outputs,
				"output_bytes", rec.OutputBytes,
				"duration", rec.Duration,
			)
		}
		if o.recorder != nil {
			o.recorder.Record(context.WithoutCancel(ctx), rec)
		}
	}()

	if err := o.precheck(op, target, sessionBytes); err != nil {
		return nil, err
	}
	rec.State = domain.StateValidated

	if o.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.OperationTimeout)
		defer cancel()
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for a conversion slot: %w", err)
	}
	defer o.sem.Release(1)

	rec.State = domain.StateRunning
	log.Debug("operation running", "inputs", rec.Inputs)

	var artifacts []domain.Artifact
	switch op {
	case domain.OpMerge, domain.OpMergeWith:
		artifacts, err = o.merge(ctx, target.Entries)
	case domain.OpSplit:
		artifacts, err = o.split(ctx, target.Entries[0], target.Pages)
	case domain.OpToImages:
		artifacts, err = o.toImages(ctx, target.Entries[0])
	case domain.OpToPDF:
		artifacts, err = o.toPDF(ctx, target.Entries[0])
	case domain.OpCombineImages:
		artifacts, err = o.combineImages(ctx, target.Entries)
	case domain.OpRename:
		artifacts = []domain.Artifact{rename(target.Entries[0], target.Name)}
	default:
		err = fmt.Errorf("%s is not a file operation", op)
	}
	if err != nil {
		return nil, err
	}

	if err := o.checkOutputs(artifacts); err != nil {
		return nil, err
	}
	return &Outcome{ID: rec.ID, Artifacts: artifacts}, nil
}

// precheck enforces everything that needs no file I/O.
func (o *Orchestrator) precheck(op domain.Operation, target domain.ResolvedTarget, sessionBytes int64) error {
	entries := target.Entries

	switch op {
	case domain.OpMerge, domain.OpMergeWith:
		if len(entries) < 2 {
			return domain.NewError(domain.ErrInsufficientInput, "",
				fmt.Sprintf("merge needs at least 2 files, got %d", len(entries)))
		}
		for _, e := range entries {
			if !hasKind(e, mergeable) {
				return domain.NewError(domain.ErrUnsupportedKind, e.Label(), "cannot be merged")
			}
		}
		var inputs int64
		for _, e := range entries {
			inputs += e.Size
		}
		if o.cfg.MaxTotalBytes > 0 && sessionBytes+inputs > o.cfg.MaxTotalBytes {
			return domain.NewError(domain.ErrCapacity, "",
				fmt.Sprintf("merging %s would exceed the %s memory limit", formatBytes(inputs), formatBytes(o.cfg.MaxTotalBytes)))
		}

	case domain.OpCombineImages:
		if len(entries) < 2 {
			return domain.NewError(domain.ErrInsufficientInput, "",
				fmt.Sprintf("combining needs at least 2 images, got %d", len(entries)))
		}
		for _, e := range entries {
			if e.Kind != domain.KindImage {
				return domain.NewError(domain.ErrUnsupportedKind, e.Label(), "is not an image")
			}
		}

	case domain.OpSplit, domain.OpToImages:
		if len(entries) != 1 {
			return domain.NewError(domain.ErrInsufficientInput, "", "pick exactly one PDF")
		}
		if entries[0].Kind != domain.KindPDF {
			return domain.NewError(domain.ErrUnsupportedKind, entries[0].Label(), "is not a PDF")
		}
		if op == domain.OpSplit && len(target.Pages) == 0 {
			return domain.NewError(domain.ErrRange, "", "no page ranges given")
		}

	case domain.OpToPDF:
		if len(entries) != 1 {
			return domain.NewError(domain.ErrInsufficientInput, "", "pick exactly one file")
		}
		switch entries[0].Kind {
		case domain.KindPDF:
			return domain.NewError(domain.ErrInvalidFormat, entries[0].Label(), "already a PDF")
		case domain.KindWord, domain.KindImage:
		default:
			return domain.NewError(domain.ErrUnsupportedKind, entries[0].Label(), "cannot be converted to PDF")
		}

	case domain.OpRename:
		if len(entries) != 1 {
			return domain.NewError(domain.ErrInsufficientInput, "", "pick exactly one file")
		}
		if strings.TrimSpace(target.Name) == "" {
			return &domain.ParseError{Input: string(op), Detail: "a new name is required"}
		}

	default:
		return fmt.Errorf("%s is not a file operation", op)
	}
	return nil
}

// merge opens every input before producing anything, so a corrupt file
// fails the whole merge with no output.
func (o *Orchestrator) merge(ctx context.Context, entries []*domain.FileEntry) ([]domain.Artifact, error) {
	inputs := make([][]byte, len(entries))
	numbers := make([]string, len(entries))

	for i, e := range entries {
		content, err := o.asPDF(ctx, e)
		if err != nil {
			return nil, err
		}
		if _, err := o.pageCount(ctx, e, content); err != nil {
			return nil, err
		}
		inputs[i] = content
		numbers[i] = strconv.Itoa(e.Number)
	}

	merged, err := o.adapters.PDF.Merge(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return []domain.Artifact{pdfArtifact("merged_"+strings.Join(numbers, "_"), merged)}, nil
}

// split checks every token against the real page count before extracting
// anything.
func (o *Orchestrator) split(ctx context.Context, e *domain.FileEntry, pages []domain.PageToken) ([]domain.Artifact, error) {
	total, err := o.pageCount(ctx, e, e.Content)
	if err != nil {
		return nil, err
	}

	for _, p := range pages {
		switch {
		case p.From < 1:
			return nil, domain.NewError(domain.ErrRange, p.Raw, "pages start at 1")
		case p.From > p.To:
			return nil, domain.NewError(domain.ErrRange, p.Raw, "start is after end")
		case p.To > total:
			return nil, domain.NewError(domain.ErrRange, p.Raw,
				fmt.Sprintf("%s has %d pages", e.Label(), total))
		}
	}

	artifacts := make([]domain.Artifact, 0, len(pages))
	for _, p := range pages {
		part, err := o.adapters.PDF.Extract(ctx, e.Content, p.From, p.To)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, pdfArtifact(fmt.Sprintf("%s_p%s", stem(e), p), part))
	}
	return artifacts, nil
}

func (o *Orchestrator) toImages(ctx context.Context, e *domain.FileEntry) ([]domain.Artifact, error) {
	total, err := o.pageCount(ctx, e, e.Content)
	if err != nil {
		return nil, err
	}
	if o.cfg.MaxRasterPages > 0 && total > o.cfg.MaxRasterPages {
		return nil, domain.NewError(domain.ErrTooManyPages, e.Label(),
			fmt.Sprintf("%d pages, the limit is %d", total, o.cfg.MaxRasterPages))
	}

	images, err := o.adapters.Raster.Rasterize(ctx, e.Content, total)
	if err != nil {
		return nil, err
	}

	base := stem(e)
	artifacts := make([]domain.Artifact, len(images))
	for i, img := range images {
		artifacts[i] = domain.Artifact{
			Name:     fmt.Sprintf("%s_page_%0*d.png", base, digits(len(images)), i+1),
			Kind:     domain.KindImage,
			MimeType: domain.MimePNG,
			Content:  img,
		}
	}
	return artifacts, nil
}

func (o *Orchestrator) toPDF(ctx context.Context, e *domain.FileEntry) ([]domain.Artifact, error) {
	content, err := o.asPDF(ctx, e)
	if err != nil {
		return nil, err
	}
	return []domain.Artifact{pdfArtifact(stem(e), content)}, nil
}

func (o *Orchestrator) combineImages(ctx context.Context, entries []*domain.FileEntry) ([]domain.Artifact, error) {
	images := make([][]byte, len(entries))
	numbers := make([]string, len(entries))
	for i, e := range entries {
		images[i] = e.Content
		numbers[i] = strconv.Itoa(e.Number)
	}

	out, err := o.adapters.Images.ImagesToPDF(ctx, images)
	if err != nil {
		return nil, err
	}
	return []domain.Artifact{pdfArtifact("images_"+strings.Join(numbers, "_"), out)}, nil
}

// asPDF returns the entry as PDF bytes, converting Word documents and
// images first.
func (o *Orchestrator) asPDF(ctx context.Context, e *domain.FileEntry) ([]byte, error) {
	switch e.Kind {
	case domain.KindPDF:
		return e.Content, nil
	case domain.KindWord:
		out, err := o.adapters.Documents.ToPDF(ctx, e.Content, e.Name)
		return out, o.blame(err, e)
	case domain.KindImage:
		out, err := o.adapters.Images.ImagesToPDF(ctx, [][]byte{e.Content})
		return out, o.blame(err, e)
	}
	return nil, domain.NewError(domain.ErrUnsupportedKind, e.Label(), "")
}

func (o *Orchestrator) pageCount(ctx context.Context, e *domain.FileEntry, content []byte) (int, error) {
	n, err := o.adapters.PDF.PageCount(ctx, content)
	if err != nil {
		return 0, o.blame(err, e)
	}
	if n < 1 {
		return 0, domain.NewError(domain.ErrInvalidFormat, e.Label(), "document has no pages")
	}
	return n, nil
}

func (o *Orchestrator) checkOutputs(artifacts []domain.Artifact) error {
	if o.cfg.MaxOutputBytes <= 0 {
		return nil
	}
	for _, a := range artifacts {
		if size := int64(len(a.Content)); size > o.cfg.MaxOutputBytes {
			return domain.NewError(domain.ErrCapacity, a.Name,
				fmt.Sprintf("result is %s, the delivery limit is %s", formatBytes(size), formatBytes(o.cfg.MaxOutputBytes)))
		}
	}
	return nil
}

// blame names the offending entry on an unreadable-input failure. Other
// errors pass through unchanged.
func (o *Orchestrator) blame(err error, e *domain.FileEntry) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Subject != "" {
		return err
	}
	if errors.Is(err, domain.ErrInvalidFormat) && !errors.Is(err, domain.ErrAdapter) {
		o.logger.Debug("unreadable input", "entry", e.Number, "kind", e.Kind, "error", err)
		return domain.NewError(domain.ErrInvalidFormat, e.Label(), "not a readable "+string(e.Kind))
	}
	return err
}

func pdfArtifact(name string, content []byte) domain.Artifact {
	return domain.Artifact{
		Name:     name + ".pdf",
		Kind:     domain.KindPDF,
		MimeType: domain.MimePDF,
		Content:  content,
	}
}

// rename returns the entry content under a new name. The entry's extension
// is kept; repeating it in the new name is allowed.
func rename(e *domain.FileEntry, name string) domain.Artifact {
	ext := filepath.Ext(e.Name)
	name = strings.TrimSpace(name)
	if ext != "" && strings.EqualFold(filepath.Ext(name), ext) {
		name = name[:len(name)-len(ext)]
	}
	name = safeStem(name, e.Number) + ext
	mime := e.MimeType
	if mime == "" {
		mime = domain.MimeTypeFor(name)
	}
	return domain.Artifact{
		Name:     name,
		Kind:     e.Kind,
		MimeType: mime,
		Content:  e.Content,
	}
}

// stem is a filesystem-safe, bounded version of the entry name without
// extension.
func stem(e *domain.FileEntry) string {
	return safeStem(e.BaseName(), e.Number)
}

func safeStem(base string, number int) string {
	base = strings.TrimSpace(base)
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, base)
	if r := []rune(base); len(r) > config.MaxFilenameStem {
		base = string(r[:config.MaxFilenameStem])
	}
	if strings.Trim(base, ".") == "" {
		base = fmt.Sprintf("file_%d", number)
	}
	return base
}

func digits(n int) int {
	return len(strconv.Itoa(n))
}
