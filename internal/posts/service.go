package posts

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mekod/ledger/internal/backend"
	"github.com/mekod/ledger/internal/common"
	"github.com/mekod/ledger/internal/logging"
	"github.com/mekod/ledger/internal/profile"
)

// slugSuffixLen is the length of the random tail appended on a slug clash.
const slugSuffixLen = 6

// NewPost is the input for Create. Zero Title becomes "Untitled"; zero
// Visibility becomes private.
type NewPost struct {
	AuthorID   string
	Title      string
	Content    string
	Visibility Visibility
	Published  bool
}

// Changes is the input for Update. The slug is regenerated from Title.
type Changes struct {
	Title      string
	Content    string
	Visibility Visibility
}

// Service implements post and comment operations against whichever client
// the caller passes in. Stateless apart from its logger; safe for concurrent
// use.
type Service struct {
	log logging.Logger
}

func NewService(log logging.Logger) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Service{log: log.With("component", "posts")}
}

// Create inserts a new post and returns the stored row. The slug comes from
// the title; if it is already taken the insert is retried exactly once with
// a random suffix.
func (s *Service) Create(ctx context.Context, client *backend.Client, in NewPost) (*Post, error) {
	if in.AuthorID == "" {
		return nil, fmt.Errorf("%w: post has no author", common.ErrNoSession)
	}
	if in.Title == "" {
		in.Title = "Untitled"
	}
	if in.Visibility == "" {
		in.Visibility = VisibilityPrivate
	}

	base := Slugify(in.Title)
	slugs := []string{base, base + "-" + common.RandSuffix(slugSuffixLen)}

	var lastErr error
	for _, slug := range slugs {
		row := map[string]any{
			"author_id":    in.AuthorID,
			"title":        in.Title,
			"content":      in.Content,
			"slug":         slug,
			"visibility":   in.Visibility,
			"is_published": in.Published,
		}
		var created Post
		err := client.Table(TableName).Insert(row).One(ctx, &created)
		if err == nil {
			return &created, nil
		}
		if errors.Is(err, common.ErrConflict) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("slug %q kept conflicting: %w", base, lastErr)
}

// ListMine returns the author's own posts, newest first, regardless of
// visibility or published state.
func (s *Service) ListMine(ctx context.Context, client *backend.Client, authorID string) ([]Post, error) {
	var out []Post
	err := client.Table(TableName).
		Select("*").
		Eq("author_id", authorID).
		Order("inserted_at", true).
		All(ctx, &out)
	return out, err
}

// ListPublicByUsername returns the published public posts of the given
// username, newest first.
func (s *Service) ListPublicByUsername(ctx context.Context, client *backend.Client, username string) ([]Post, error) {
	authorID, err := s.authorIDByUsername(ctx, client, username)
	if err != nil {
		return nil, err
	}

	var out []Post
	err = client.Table(TableName).
		Select("*").
		Eq("author_id", authorID).
		Eq("is_published", true).
		Eq("visibility", VisibilityPublic).
		Order("inserted_at", true).
		All(ctx, &out)
	return out, err
}

// GetBySlug returns one published public post addressed as username/slug.
func (s *Service) GetBySlug(ctx context.Context, client *backend.Client, username, slug string) (*Post, error) {
	authorID, err := s.authorIDByUsername(ctx, client, username)
	if err != nil {
		return nil, err
	}

	var p Post
	err = client.Table(TableName).
		Select("*").
		Eq("author_id", authorID).
		Eq("slug", slug).
		Eq("is_published", true).
		Eq("visibility", VisibilityPublic).
		One(ctx, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update rewrites a post's title, content and (optionally) visibility. The
// slug is regenerated from the new title with the post id as a stable
// suffix, so edits never collide with other posts. Returns the updated row;
// a post not owned by authorID surfaces as ErrNotFound.
func (s *Service) Update(ctx context.Context, client *backend.Client, id int64, authorID string, ch Changes) (*Post, error) {
	if ch.Title == "" {
		ch.Title = "Untitled"
	}
	changes := map[string]any{
		"title":   ch.Title,
		"content": ch.Content,
		"slug":    Slugify(ch.Title) + "-" + strconv.FormatInt(id, 10),
	}
	if ch.Visibility != "" {
		changes["visibility"] = ch.Visibility
	}

	var updated Post
	err := client.Table(TableName).
		Update(changes).
		Eq("id", id).
		Eq("author_id", authorID).
		One(ctx, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetPublished flips a post's published flag.
func (s *Service) SetPublished(ctx context.Context, client *backend.Client, id int64, authorID string, published bool) error {
	var updated Post
	return client.Table(TableName).
		Update(map[string]any{"is_published": published}).
		Eq("id", id).
		Eq("author_id", authorID).
		One(ctx, &updated)
}

// Delete removes a post. Deleting someone else's post, or a post that does
// not exist, surfaces as ErrNotFound.
func (s *Service) Delete(ctx context.Context, client *backend.Client, id int64, authorID string) error {
	var deleted Post
	return client.Table(TableName).
		Delete().
		Eq("id", id).
		Eq("author_id", authorID).
		One(ctx, &deleted)
}

// Comments lists a post's comments, oldest first.
func (s *Service) Comments(ctx context.Context, client *backend.Client, postID int64) ([]Comment, error) {
	var out []Comment
	err := client.Table(CommentsTable).
		Select("*").
		Eq("post_id", postID).
		Order("inserted_at", false).
		All(ctx, &out)
	return out, err
}

// AddComment appends a comment to a post and returns the stored row.
func (s *Service) AddComment(ctx context.Context, client *backend.Client, postID int64, userID, content string) (*Comment, error) {
	if content == "" {
		return nil, errors.New("empty comment")
	}
	row := map[string]any{"post_id": postID, "user_id": userID, "content": content}

	var created Comment
	err := client.Table(CommentsTable).Insert(row).One(ctx, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Probe checks whether the connected project carries the expected schema. A
// reachable project without the tables reports ErrSchemaMissing, which the
// setup flow turns into "run the schema script" guidance.
func (s *Service) Probe(ctx context.Context, client *backend.Client) error {
	var rows []Post
	return client.Table(TableName).Select("id").Limit(1).All(ctx, &rows)
}

func (s *Service) authorIDByUsername(ctx context.Context, client *backend.Client, username string) (string, error) {
	var p profile.Profile
	err := client.Table(profile.TableName).
		Select("id,username").
		Eq("username", username).
		One(ctx, &p)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}
