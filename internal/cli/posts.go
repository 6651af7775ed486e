package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mekod/ledger/internal/backend"
	"github.com/mekod/ledger/internal/common"
	"github.com/mekod/ledger/internal/drafts"
	"github.com/mekod/ledger/internal/posts"
)

// activeAuthor returns the client and user id the post commands operate as.
func (a *App) activeAuthor() (*backend.Client, string, error) {
	client, err := a.facade.ActiveClient()
	if err != nil {
		return nil, "", err
	}
	st := a.facade.State()
	if st.User == nil {
		return nil, "", fmt.Errorf("%w: run 'login' first", common.ErrNoSession)
	}
	return client, st.User.ID, nil
}

// Write collects a new piece interactively. The text lands in the local
// drafts database first, so nothing is lost if publishing fails or the user
// is offline; publishing deletes the draft.
func (a *App) Write(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	content, err := GetMultiline(a.reader, "Write your post", a.out)
	if err != nil {
		return err
	}

	d := &drafts.Draft{Title: title, Content: content}
	if err := a.drafts.Drafts.Save(ctx, d); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Draft saved locally (%s).\n", d.ID)

	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Sign in and run 'drafts post "+d.ID+"' to publish it.")
		return nil
	}

	answer, err := getSimpleText(a.reader, "Publish now? (y/n)", a.out)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(strings.ToLower(answer), "y") {
		return nil
	}
	return a.publishDraft(ctx, d)
}

// ListPosts prints the signed-in author's posts, newest first.
func (a *App) ListPosts(ctx context.Context) error {
	client, authorID, err := a.activeAuthor()
	if err != nil {
		return err
	}

	list, err := a.posts.ListMine(ctx, client, authorID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No posts yet. Use 'write' to start one.")
		return nil
	}

	for _, p := range list {
		marker := " "
		if p.Published {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%4d %s %-40q %s (%d min)\n", p.ID, marker, p.Title, p.Slug, p.ReadingTimeMinutes())
	}
	return nil
}

// Publish marks a post as published.
func (a *App) Publish(ctx context.Context, args []string) error {
	id, ok := parseID(a, args, "publish")
	if !ok {
		return nil
	}
	client, authorID, err := a.activeAuthor()
	if err != nil {
		return err
	}

	if err := a.posts.SetPublished(ctx, client, id, authorID, true); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			fmt.Fprintln(a.out, "No such post.")
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "Published.")
	return nil
}

// Remove deletes a post.
func (a *App) Remove(ctx context.Context, args []string) error {
	id, ok := parseID(a, args, "rm")
	if !ok {
		return nil
	}
	client, authorID, err := a.activeAuthor()
	if err != nil {
		return err
	}

	if err := a.posts.Delete(ctx, client, id, authorID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			fmt.Fprintln(a.out, "No such post.")
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

func (a *App) publishDraft(ctx context.Context, d *drafts.Draft) error {
	client, authorID, err := a.activeAuthor()
	if err != nil {
		return err
	}

	p, err := a.posts.Create(ctx, client, posts.NewPost{
		AuthorID:   authorID,
		Title:      d.Title,
		Content:    d.Content,
		Visibility: posts.VisibilityPublic,
		Published:  true,
	})
	if err != nil {
		return err
	}
	if err := a.drafts.Drafts.Delete(ctx, d.ID); err != nil {
		a.log.Warn(ctx, "published draft could not be removed locally", "draft_id", d.ID, "error", err)
	}
	fmt.Fprintf(a.out, "Published %q as %s (%d min read).\n", p.Title, p.Slug, p.ReadingTimeMinutes())
	return nil
}

func parseID(a *App, args []string, cmd string) (int64, bool) {
	if len(args) == 0 {
		fmt.Fprintf(a.out, "Usage: %s <id>\n", cmd)
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(a.out, "Not a post id: %s\n", args[0])
		return 0, false
	}
	return id, true
}
