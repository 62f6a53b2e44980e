package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"groundcontrol/internal/domain"
	"groundcontrol/internal/notify"
)

const commentDetailLimit = 100

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_]+)`)

// ExtractMentions matches @handle tokens against the fixed actor
// vocabulary, case-insensitively. Duplicates collapse to one entry; the
// result is nil, never empty, when nothing matches.
func ExtractMentions(content string) []string {
	var mentions []string
	seen := map[string]bool{}
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		handle := strings.ToLower(m[1])
		if seen[handle] {
			continue
		}
		for _, known := range domain.HumanActors {
			if handle == known {
				seen[handle] = true
				mentions = append(mentions, handle)
				break
			}
		}
	}
	return mentions
}

// AddComment appends a comment, logs a "commented" activity with the
// truncated content, and schedules a mention notification when the
// watched collaborator is named by someone else. Self-mentions and
// system-authored comments never notify.
func (e Engine) AddComment(ctx context.Context, taskID, author, content string) (domain.Comment, error) {
	if !domain.ValidAuthor(author) {
		return domain.Comment{}, &ValidationError{Field: "author", Reason: fmt.Sprintf("unknown author %q", author)}
	}
	if content == "" {
		return domain.Comment{}, &ValidationError{Field: "content", Reason: "required"}
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Comment{}, err
	}
	c := domain.Comment{
		ID:        uuid.New().String(),
		Author:    author,
		Content:   content,
		Mentions:  ExtractMentions(content),
		CreatedAt: e.nowString(),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Comment{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertComment(ctx, tx, t.ID, c); err != nil {
		return domain.Comment{}, err
	}
	if err := e.touch(ctx, tx, &t); err != nil {
		return domain.Comment{}, err
	}
	if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionCommented, author, truncate(content, commentDetailLimit)); err != nil {
		return domain.Comment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Comment{}, err
	}

	watched := e.watched()
	if author != watched && author != domain.ActorSystem && mentioned(c.Mentions, watched) {
		e.schedule(notify.Message{
			TaskID:         t.ID,
			TaskTitle:      t.Title,
			Action:         notify.ActionMention,
			CommentContent: content,
			CommentAuthor:  author,
		})
	}
	return c, nil
}

// AddGitHubCommit appends a system comment describing a commit that
// referenced this task. System comments bypass mention notification.
func (e Engine) AddGitHubCommit(ctx context.Context, taskID, sha, message, author string) error {
	short := sha
	if len(short) > 7 {
		short = short[:7]
	}
	content := fmt.Sprintf("Commit %s by %s: %s", short, author, strings.TrimSpace(message))
	_, err := e.AddComment(ctx, taskID, domain.ActorSystem, content)
	return err
}

// UpdateFromPRMerge appends a system comment for a merged pull request
// and moves the task to review unless it already reached done.
func (e Engine) UpdateFromPRMerge(ctx context.Context, taskID string, prNumber int, prTitle string) error {
	content := fmt.Sprintf("PR #%d merged: %s", prNumber, strings.TrimSpace(prTitle))
	if _, err := e.AddComment(ctx, taskID, domain.ActorSystem, content); err != nil {
		return err
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status == domain.StatusDone || t.Status == domain.StatusReview {
		return nil
	}
	status := domain.StatusReview
	_, err = e.UpdateTask(ctx, taskID, TaskUpdateOptions{Status: &status, Actor: domain.ActorSystem})
	return err
}

func mentioned(mentions []string, handle string) bool {
	for _, m := range mentions {
		if m == handle {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
