package service

import (
	"fmt"

	"github.com/set-night/pagecraft/internal/domain"
)

// mergeable kinds can be converted to PDF and concatenated.
var mergeable = []domain.Kind{domain.KindPDF, domain.KindImage, domain.KindWord}

// defaultKinds lists, per single-file operation, which kinds the
// "latest file" default may pick.
var defaultKinds = map[domain.Operation][]domain.Kind{
	domain.OpSplit:    {domain.KindPDF},
	domain.OpToImages: {domain.KindPDF},
	domain.OpToPDF:    {domain.KindWord, domain.KindImage},
	domain.OpRename:   nil,
}

// Resolve maps a command's target onto session entries. It reads the
// session only; page tokens are passed through and checked later against
// the real page count.
//
// Precedence: a non-empty explicit expression always wins. With an empty
// expression a tracked reply-context selects that single file; otherwise
// the operation default applies.
func Resolve(cmd domain.Command, sess *Session) (domain.ResolvedTarget, error) {
	target := domain.ResolvedTarget{Pages: cmd.Pages, Name: cmd.Name}

	if cmd.Op == domain.OpMergeWith {
		return resolveMergeWith(cmd, sess, target)
	}

	if !cmd.Target.Empty() {
		entries, err := lookup(sess, cmd.Target.Indices)
		if err != nil {
			return domain.ResolvedTarget{}, err
		}
		target.Entries = entries
		return target, nil
	}

	if sess.Len() == 0 {
		return domain.ResolvedTarget{}, domain.NewError(domain.ErrEmptySession, "", "upload a file first")
	}

	if entry, ok := sess.ByMessage(cmd.ReplyTo); ok {
		target.Entries = []*domain.FileEntry{entry}
		target.FromReply = true
		return target, nil
	}

	switch {
	case cmd.Op.SingleTarget():
		kinds := defaultKinds[cmd.Op]
		entry, ok := sess.Latest(kinds...)
		if !ok {
			return domain.ResolvedTarget{}, domain.NewError(domain.ErrNotFound, "",
				fmt.Sprintf("no %s in session", kindList(kinds)))
		}
		target.Entries = []*domain.FileEntry{entry}

	case cmd.Op == domain.OpCombineImages:
		target.Entries = filterKinds(sess.Entries(), domain.KindImage)

	default:
		target.Entries = filterKinds(sess.Entries(), mergeable...)
	}

	return target, nil
}

// resolveMergeWith seeds the list with the replied-to file, followed by the
// explicit list or, when that is empty, every other PDF in upload order.
func resolveMergeWith(cmd domain.Command, sess *Session, target domain.ResolvedTarget) (domain.ResolvedTarget, error) {
	if cmd.ReplyTo == 0 {
		return domain.ResolvedTarget{}, domain.NewError(domain.ErrReplyRequired, "", "reply to a file with /merge_with")
	}
	anchor, ok := sess.ByMessage(cmd.ReplyTo)
	if !ok {
		return domain.ResolvedTarget{}, domain.NewError(domain.ErrReplyRequired, "",
			"the replied message does not carry a file from this session")
	}

	entries := []*domain.FileEntry{anchor}
	if !cmd.Target.Empty() {
		rest, err := lookup(sess, cmd.Target.Indices)
		if err != nil {
			return domain.ResolvedTarget{}, err
		}
		entries = append(entries, rest...)
	} else {
		for _, e := range sess.Entries() {
			if e.Number != anchor.Number && e.Kind == domain.KindPDF {
				entries = append(entries, e)
			}
		}
	}

	target.Entries = entries
	target.FromReply = true
	return target, nil
}

// lookup resolves every index or fails on the first unknown one.
func lookup(sess *Session, indices []int) ([]*domain.FileEntry, error) {
	entries := make([]*domain.FileEntry, 0, len(indices))
	for _, n := range indices {
		e, err := sess.Get(n)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func filterKinds(entries []*domain.FileEntry, kinds ...domain.Kind) []*domain.FileEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if hasKind(e, kinds) {
			out = append(out, e)
		}
	}
	return out
}

func kindList(kinds []domain.Kind) string {
	switch len(kinds) {
	case 0:
		return "file"
	case 1:
		return string(kinds[0])
	}
	s := string(kinds[0])
	for _, k := range kinds[1:] {
		s += " or " + string(k)
	}
	return s
}
