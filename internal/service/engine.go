package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/set-night/pagecraft/internal/domain"
)

// UploadEvent is a file received from the transport.
type UploadEvent struct {
	UserID       int64
	ChatID       int64
	MessageID    int
	Filename     string
	MimeType     string
	Content      []byte
	DeclaredKind domain.Kind
}

// CommandEvent is a text command received from the transport. ReplyTo is
// the id of the message the command replies to, or 0.
type CommandEvent struct {
	UserID  int64
	ChatID  int64
	Text    string
	ReplyTo int
	IsAdmin bool
}

// Sink delivers engine output back to the user.
type Sink interface {
	SendText(ctx context.Context, chatID int64, text string) error
	// SendArtifact delivers a file and returns the id of the message
	// carrying it.
	SendArtifact(ctx context.Context, chatID int64, artifact domain.Artifact) (int, error)
	// SendReceipt sends a short confirmation and returns its message id.
	SendReceipt(ctx context.Context, chatID int64, text string) (int, error)
}

type EngineConfig struct {
	// TrackOutputs re-absorbs delivered PDFs and images as session entries
	// so replies to them can chain further operations.
	TrackOutputs      bool
	BundleImagesAbove int
}

// Engine connects parser, resolver and orchestrator to a session store.
type Engine struct {
	store *SessionStore
	orch  *Orchestrator
	stats *Stats
	cfg   EngineConfig
	log   *slog.Logger
}

func NewEngine(store *SessionStore, orch *Orchestrator, stats *Stats, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, orch: orch, stats: stats, cfg: cfg, log: logger}
}

func (e *Engine) Store() *SessionStore { return e.store }

// StatReport renders operation statistics and current session usage.
func (e *Engine) StatReport() string {
	sessions, bytes := e.store.Count()
	return e.stats.Report(sessions, bytes)
}

// ListText renders the user's files for /list.
func (e *Engine) ListText(userID int64) (string, int) {
	entries := e.store.List(userID)
	return ListText(entries, e.store.Limits()), len(entries)
}

// HandleUpload stores a file and confirms its number. User-facing failures
// are reported through the sink; only delivery errors are returned.
func (e *Engine) HandleUpload(ctx context.Context, sink Sink, ev UploadEvent) error {
	kind := ev.DeclaredKind
	if kind == "" {
		k, ok := domain.DetectKind(ev.Filename, ev.MimeType)
		if !ok {
			return sink.SendText(ctx, ev.ChatID, Describe(domain.NewError(domain.ErrUnsupportedKind, ev.Filename,
				"send a PDF, an image or a Word document")))
		}
		kind = k
	}

	var reply string
	err := e.store.Do(ctx, ev.UserID, func(sess *Session) error {
		entry, err := sess.Add(Upload{
			Filename:  ev.Filename,
			MimeType:  ev.MimeType,
			Kind:      kind,
			Content:   ev.Content,
			MessageID: ev.MessageID,
			Origin:    domain.OriginUploaded,
		}, e.store.now())
		if err != nil {
			reply = Describe(err)
			return nil
		}
		e.log.Info("file stored",
			"user_id", ev.UserID,
			"number", entry.Number,
			"kind", entry.Kind,
			"size", entry.Size,
		)

		// Replies to the confirmation target the file too.
		msgID, err := sink.SendReceipt(ctx, ev.ChatID, savedText(entry, e.store.Limits(), sess.Len()))
		if err != nil {
			return fmt.Errorf("send receipt: %w", err)
		}
		sess.TrackMessage(msgID, entry.Number)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	if reply == "" {
		return nil
	}
	return sink.SendText(ctx, ev.ChatID, reply)
}

// HandleCommand parses and runs one command.
func (e *Engine) HandleCommand(ctx context.Context, sink Sink, ev CommandEvent) error {
	cmd, err := ParseCommand(ev.Text, ev.ReplyTo)
	if err != nil {
		return sink.SendText(ctx, ev.ChatID, Describe(err))
	}

	switch cmd.Op {
	case domain.OpStart:
		return sink.SendText(ctx, ev.ChatID, startText)
	case domain.OpHelp:
		return sink.SendText(ctx, ev.ChatID, helpText)
	case domain.OpList:
		return sink.SendText(ctx, ev.ChatID, ListText(e.store.List(ev.UserID), e.store.Limits()))
	case domain.OpClear:
		e.store.Clear(ev.UserID)
		return sink.SendText(ctx, ev.ChatID, "🗑 All files removed. New uploads start again at #1.")
	case domain.OpStat:
		if !ev.IsAdmin {
			return sink.SendText(ctx, ev.ChatID, Describe(&domain.ParseError{Input: string(cmd.Op)}))
		}
		return sink.SendText(ctx, ev.ChatID, e.StatReport())
	}

	return e.runOperation(ctx, sink, ev, cmd)
}

// runOperation holds the user's session for the whole run: resolution,
// execution, delivery and re-absorption of outputs.
func (e *Engine) runOperation(ctx context.Context, sink Sink, ev CommandEvent, cmd domain.Command) error {
	return e.store.Do(ctx, ev.UserID, func(sess *Session) error {
		target, err := Resolve(cmd, sess)
		if err != nil {
			return sink.SendText(ctx, ev.ChatID, Describe(err))
		}

		outcome, err := e.orch.Execute(ctx, ev.UserID, cmd.Op, target, sess.TotalBytes())
		if err != nil {
			return sink.SendText(ctx, ev.ChatID, Describe(err))
		}

		artifacts, err := e.deliverable(cmd.Op, target, outcome.Artifacts)
		if err != nil {
			return fmt.Errorf("bundle outputs: %w", err)
		}

		var saved []string
		skipped := 0
		for _, a := range artifacts {
			msgID, err := sink.SendArtifact(ctx, ev.ChatID, a)
			if err != nil {
				return fmt.Errorf("send %s: %w", a.Name, err)
			}
			if !e.cfg.TrackOutputs || (a.Kind != domain.KindPDF && a.Kind != domain.KindImage) {
				continue
			}
			entry, err := sess.Add(Upload{
				Filename:  a.Name,
				MimeType:  a.MimeType,
				Kind:      a.Kind,
				Content:   a.Content,
				MessageID: msgID,
				Origin:    domain.OriginGenerated,
			}, e.store.now())
			if err != nil {
				if !errors.Is(err, domain.ErrCapacity) {
					return err
				}
				skipped++
				continue
			}
			saved = append(saved, fmt.Sprintf("#%d", entry.Number))
		}

		return sink.SendText(ctx, ev.ChatID, doneText(cmd.Op, len(artifacts), saved, skipped))
	})
}

// deliverable bundles page images into one archive when there are many.
func (e *Engine) deliverable(op domain.Operation, target domain.ResolvedTarget, artifacts []domain.Artifact) ([]domain.Artifact, error) {
	if op != domain.OpToImages || e.cfg.BundleImagesAbove <= 0 || len(artifacts) <= e.cfg.BundleImagesAbove {
		return artifacts, nil
	}
	name := stem(target.Entries[0]) + "_pages.zip"
	bundle, err := Bundle(name, artifacts)
	if err != nil {
		return nil, err
	}
	return []domain.Artifact{bundle}, nil
}

func doneText(op domain.Operation, sent int, saved []string, skipped int) string {
	var b strings.Builder
	switch op {
	case domain.OpSplit:
		fmt.Fprintf(&b, "✅ Split into %d file(s).", sent)
	case domain.OpToImages:
		b.WriteString("✅ Pages converted to images.")
	case domain.OpRename:
		b.WriteString("✅ Renamed.")
	default:
		b.WriteString("✅ Done.")
	}

	if len(saved) > 0 {
		fmt.Fprintf(&b, " Saved as %s, reply to the result to keep working with it.", strings.Join(saved, ", "))
	}
	if skipped > 0 {
		fmt.Fprintf(&b, " %d result(s) were not added to your files because the session is full; use /clear to make room.", skipped)
	}
	return b.String()
}
