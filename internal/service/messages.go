package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/set-night/pagecraft/internal/domain"
)

const startText = `👋 *Welcome to Page Craft!*

Send me PDFs, images or Word documents. Each file gets a number you can use in commands, or reply to a file with a command to target it.

Type /help to see everything I can do.`

const helpText = `📚 *Page Craft commands*

📁 *Files*
/list - show your files
/clear - remove all files

📄 *PDF*
/merge - merge all files in upload order
/merge 2,1 - merge #2 then #1
/split 1 1-3 5 - cut pages 1-3 and 5 of #1
/to\_images 1 - turn every page of #1 into a PNG

🔁 *Conversion*
/to\_pdf 2 - convert a Word document or image to PDF
/combine\_images - put all images into one PDF
/rename 3 report - send #3 again as report.pdf

↩️ *Replies*
Reply to a file with /split 2-4, /to\_images, /to\_pdf or /rename to target it.
Reply to a PDF with /merge\_with 3 to merge it with #3, or with /merge\_with alone to merge it with every other PDF.

Files are kept for a limited time and never shared between users.`

// Describe renders a failure as one user-facing line. Internal causes are
// never shown verbatim.
func Describe(err error) string {
	var pe *domain.ParseError
	if errors.As(err, &pe) {
		if pe.Suggestion != "" {
			return fmt.Sprintf("❓ Unknown command /%s. Did you mean /%s?", escape(pe.Input), escape(pe.Suggestion))
		}
		if pe.Detail != "" {
			return fmt.Sprintf("❓ Could not read `%s`: %s.", pe.Input, pe.Detail)
		}
		return fmt.Sprintf("❓ Unknown command /%s. Type /help for the list.", escape(pe.Input))
	}

	var ae *domain.AdapterError
	if errors.As(err, &ae) {
		if errors.Is(err, domain.ErrToolUnavailable) {
			return fmt.Sprintf("⚠️ %s is not available on this server right now.", capitalize(ae.Stage))
		}
		return fmt.Sprintf("⚠️ %s failed. Please try again later.", capitalize(ae.Stage))
	}

	kind := domain.KindOf(err)
	if kind == nil {
		return "⚠️ Something went wrong. Please try again."
	}

	var de *domain.Error
	var subject, detail string
	if errors.As(err, &de) {
		subject, detail = de.Subject, de.Detail
	}

	var msg string
	switch kind {
	case domain.ErrCapacity:
		msg = "📦 Limit reached"
	case domain.ErrNotFound:
		msg = "🔍 File not found"
	case domain.ErrEmptySession:
		msg = "📭 You have no files yet"
	case domain.ErrInsufficientInput:
		msg = "➕ Not enough files"
	case domain.ErrInvalidFormat:
		msg = "🚫 Invalid file"
	case domain.ErrRange:
		msg = "📏 Invalid page range"
	case domain.ErrTooManyPages:
		msg = "📚 Too many pages"
	case domain.ErrReplyRequired:
		msg = "↩️ Reply to a file"
	case domain.ErrUnsupportedKind:
		msg = "🚫 Unsupported file"
	default:
		msg = "⚠️ " + capitalize(kind.Error())
	}

	if subject != "" {
		msg += ": " + escape(subject)
	}
	if detail != "" {
		msg += " (" + escape(detail) + ")"
	}
	return msg + "."
}

// ProgressText is the status shown while a file operation runs.
func ProgressText(op domain.Operation) string {
	switch op {
	case domain.OpMerge, domain.OpMergeWith:
		return "🔄 Merging files…"
	case domain.OpSplit:
		return "✂️ Splitting…"
	case domain.OpToImages:
		return "🖼 Rendering pages…"
	case domain.OpToPDF:
		return "🔁 Converting to PDF…"
	case domain.OpCombineImages:
		return "🔄 Combining images…"
	case domain.OpRename:
		return "✏️ Renaming…"
	}
	return "⏳ Working…"
}

// ListText renders the session contents for /list.
func ListText(entries []domain.FileEntry, limits SessionLimits) string {
	if len(entries) == 0 {
		return "📭 No files yet. Send me a PDF, image or Word document to get started."
	}

	var total int64
	var b strings.Builder
	fmt.Fprintf(&b, "📁 *Your files* (%d/%d)\n\n", len(entries), limits.MaxFiles)
	for _, e := range entries {
		total += e.Size
		fmt.Fprintf(&b, "%s *#%d* %s, %s", kindIcon(e.Kind), e.Number, escape(e.Name), formatBytes(e.Size))
		if e.Origin == domain.OriginGenerated {
			b.WriteString(", result")
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nTotal: %s", formatBytes(total))
	if limits.TTL > 0 {
		fmt.Fprintf(&b, ". Files expire after %s of inactivity.", humanDuration(limits.TTL))
	}
	return b.String()
}

func savedText(entry *domain.FileEntry, limits SessionLimits, count int) string {
	return fmt.Sprintf("%s Saved as *#%d*: %s (%s). Files: %d/%d.",
		kindIcon(entry.Kind), entry.Number, escape(entry.Name), formatBytes(entry.Size), count, limits.MaxFiles)
}

func kindIcon(k domain.Kind) string {
	switch k {
	case domain.KindPDF:
		return "📄"
	case domain.KindImage:
		return "🖼"
	case domain.KindWord:
		return "📝"
	case domain.KindZip:
		return "🗜"
	}
	return "📎"
}

// escape neutralizes Markdown control characters in user-supplied text.
func escape(s string) string {
	r := strings.NewReplacer("_", `\_`, "*", `\*`, "`", `\`+"`", "[", `\[`)
	return r.Replace(s)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d min", int(d.Minutes()))
	}
	return d.String()
}
