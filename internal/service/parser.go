package service

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/set-night/pagecraft/internal/config"
	"github.com/set-night/pagecraft/internal/domain"
)

// ParseCommand turns raw message text into a Command. replyTo is the id of
// the message the command replies to, or 0.
func ParseCommand(text string, replyTo int) (domain.Command, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "/")

	name, args := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		name, args = text[:i], text[i:]
	}
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	name = strings.ToLower(name)
	args = strings.TrimSpace(args)

	if name == "" {
		return domain.Command{}, &domain.ParseError{Input: text, Detail: "empty command"}
	}

	op, ok := lookupOperation(name)
	if !ok {
		return domain.Command{}, &domain.ParseError{Input: name, Suggestion: suggest(name)}
	}

	cmd := domain.Command{Op: op, Args: args, ReplyTo: replyTo}
	tokens := splitTokens(args)

	switch op {
	case domain.OpMerge, domain.OpMergeWith, domain.OpCombineImages:
		indices, err := parseIndices(op, tokens)
		if err != nil {
			return domain.Command{}, err
		}
		cmd.Target.Indices = indices

	case domain.OpToImages, domain.OpToPDF:
		if len(tokens) > 1 {
			return domain.Command{}, &domain.ParseError{Input: string(op), Detail: "takes at most one file number"}
		}
		indices, err := parseIndices(op, tokens)
		if err != nil {
			return domain.Command{}, err
		}
		cmd.Target.Indices = indices

	case domain.OpSplit:
		if len(tokens) == 0 {
			return domain.Command{}, &domain.ParseError{Input: string(op), Detail: "page ranges are required, e.g. /split 1 1-3 5"}
		}
		// "split 1 5-8": the first of several tokens is the file number
		// when it is a plain integer. A lone token is always a page token.
		if len(tokens) > 1 && isDigits(tokens[0]) {
			indices, err := parseIndices(op, tokens[:1])
			if err != nil {
				return domain.Command{}, err
			}
			cmd.Target.Indices = indices
			tokens = tokens[1:]
		}
		pages, err := parsePages(tokens)
		if err != nil {
			return domain.Command{}, err
		}
		cmd.Pages = pages

	case domain.OpRename:
		fields := strings.Fields(args)
		if len(fields) == 0 {
			return domain.Command{}, &domain.ParseError{Input: string(op), Detail: "a new name is required, e.g. /rename report"}
		}
		// "rename 2 report": a leading number picks the file when a name
		// follows it.
		if len(fields) > 1 && isDigits(fields[0]) {
			indices, err := parseIndices(op, fields[:1])
			if err != nil {
				return domain.Command{}, err
			}
			cmd.Target.Indices = indices
			fields = fields[1:]
		}
		cmd.Name = strings.Join(fields, " ")
	}

	return cmd, nil
}

// AddressedTo reports whether a command is meant for the bot with the given
// username. Commands without an @suffix are addressed to every bot.
func AddressedTo(text, botUsername string) bool {
	text = strings.TrimPrefix(strings.TrimSpace(text), "/")
	name := text
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		name = text[:i]
	}
	at := strings.IndexByte(name, '@')
	if at < 0 || botUsername == "" {
		return true
	}
	return strings.EqualFold(name[at+1:], strings.TrimPrefix(botUsername, "@"))
}

func lookupOperation(name string) (domain.Operation, bool) {
	for _, op := range domain.Operations {
		if string(op) == name {
			return op, true
		}
	}
	return "", false
}

// suggest returns the closest known command name, or "" when nothing is
// close enough to be a plausible typo.
func suggest(name string) string {
	best, bestDist := "", config.MaxSuggestionDistance+1
	for _, op := range domain.Operations {
		if d := fuzzy.LevenshteinDistance(name, string(op)); d < bestDist {
			best, bestDist = string(op), d
		}
	}
	return best
}

func splitTokens(args string) []string {
	return strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func parseIndices(op domain.Operation, tokens []string) ([]int, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	indices := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil || !isDigits(tok) {
			return nil, &domain.ParseError{Input: tok, Detail: "file numbers must be positive integers"}
		}
		if n < 1 {
			return nil, &domain.ParseError{Input: tok, Detail: "file numbers start at 1"}
		}
		indices = append(indices, n)
	}
	return indices, nil
}

// parsePages checks page-token syntax only; bounds depend on the real
// page count and are checked when the operation runs.
func parsePages(tokens []string) ([]domain.PageToken, error) {
	pages := make([]domain.PageToken, 0, len(tokens))
	for _, tok := range tokens {
		from, to, isRange := strings.Cut(tok, "-")
		if !isRange {
			to = from
		}
		if !isDigits(from) || !isDigits(to) {
			return nil, &domain.ParseError{Input: tok, Detail: "page ranges look like 3 or 5-8"}
		}
		a, errA := strconv.Atoi(from)
		b, errB := strconv.Atoi(to)
		if errA != nil || errB != nil {
			return nil, &domain.ParseError{Input: tok, Detail: "page number too large"}
		}
		pages = append(pages, domain.PageToken{Raw: tok, From: a, To: b})
	}
	return pages, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
