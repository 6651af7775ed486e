package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/mekod/ledger/internal/common"
	"github.com/mekod/ledger/internal/textx"
)

// Drafts manages the local drafts database:
//
//	drafts            list drafts
//	drafts post <id>  publish a draft to the active backend
//	drafts rm <id>    delete a draft
func (a *App) Drafts(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.listDrafts(ctx)
	}

	switch args[0] {
	case "post":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: drafts post <id>")
			return nil
		}
		d, err := a.drafts.Drafts.Get(ctx, args[1])
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				fmt.Fprintln(a.out, "No such draft.")
				return nil
			}
			return err
		}
		return a.publishDraft(ctx, d)

	case "rm":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: drafts rm <id>")
			return nil
		}
		if err := a.drafts.Drafts.Delete(ctx, args[1]); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				fmt.Fprintln(a.out, "No such draft.")
				return nil
			}
			return err
		}
		fmt.Fprintln(a.out, "Draft deleted.")
		return nil

	default:
		fmt.Fprintln(a.out, "Usage: drafts [post <id> | rm <id>]")
		return nil
	}
}

func (a *App) listDrafts(ctx context.Context) error {
	all, err := a.drafts.Drafts.List(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(a.out, "No local drafts.")
		return nil
	}

	for _, d := range all {
		title := d.Title
		if title == "" {
			title = "(untitled)"
		}
		words := textx.CountWords(textx.StripHTML(d.Content))
		fmt.Fprintf(a.out, "%s  %s  %q (%d words)\n", d.ID, d.SavedAt.Format("2006-01-02 15:04"), title, words)
	}
	return nil
}
