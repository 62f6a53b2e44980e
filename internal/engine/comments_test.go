package engine_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundcontrol/internal/engine"
	"groundcontrol/internal/notify"
)

func TestExtractMentions(t *testing.T) {
	cases := []struct {
		content string
		want    []string
	}{
		{"ping @sage about this", []string{"sage"}},
		{"@SAGE @Sage @sage", []string{"sage"}},
		{"@clifton and @sage both", []string{"clifton", "sage"}},
		{"email me at foo@example.com", nil},
		{"@stranger is not known", nil},
		{"no mentions here", nil},
	}
	for _, tc := range cases {
		got := engine.ExtractMentions(tc.content)
		assert.Equal(t, tc.want, got, "content %q", tc.content)
	}
}

func TestAddCommentExtractsMentionsAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Homepage copy"})

	c, err := env.Engine.AddComment(env.Ctx, task.ID, "clifton", "@sage can you review the draft?")
	require.NoError(t, err)
	assert.Equal(t, []string{"sage"}, c.Mentions)

	require.Len(t, env.Queue.Messages, 1)
	m := env.Queue.Messages[0]
	assert.Equal(t, notify.ActionMention, m.Action)
	assert.Equal(t, "clifton", m.CommentAuthor)
	assert.Equal(t, task.ID, m.TaskID)
	assert.Equal(t, "Homepage copy", m.TaskTitle)

	acts, err := env.Engine.Repo.ActivityForTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "commented", acts[0].Action)
	assert.Equal(t, "@sage can you review the draft?", acts[0].Details)
}

func TestSelfMentionDoesNotNotify(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Notes"})

	_, err := env.Engine.AddComment(env.Ctx, task.ID, "sage", "note to @sage: check this tomorrow")
	require.NoError(t, err)
	assert.Empty(t, env.Queue.Messages)
}

func TestSystemCommentsBypassNotification(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Integration"})

	_, err := env.Engine.AddComment(env.Ctx, task.ID, "system", "automated update mentioning @sage")
	require.NoError(t, err)
	assert.Empty(t, env.Queue.Messages)
}

func TestCommentActivityTruncatesLongContent(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Long form"})

	content := strings.Repeat("x", 150)
	_, err := env.Engine.AddComment(env.Ctx, task.ID, "clifton", content)
	require.NoError(t, err)

	acts, err := env.Engine.Repo.ActivityForTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 100)+"...", acts[0].Details)
}

func TestAddCommentValidation(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "x"})

	_, err := env.Engine.AddComment(env.Ctx, task.ID, "mallory", "hi")
	assert.Error(t, err)
	_, err = env.Engine.AddComment(env.Ctx, task.ID, "clifton", "")
	assert.Error(t, err)
}

func TestAddGitHubCommit(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Webhook target"})

	err := env.Engine.AddGitHubCommit(env.Ctx, task.ID, "deadbeefcafe", "fix parser\n\ndetails", "Clifton")
	require.NoError(t, err)

	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "system", got.Comments[0].Author)
	assert.Contains(t, got.Comments[0].Content, "deadbee")
	assert.Empty(t, env.Queue.Messages)
}

func TestUpdateFromPRMerge(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Feature branch"})

	require.NoError(t, env.Engine.UpdateFromPRMerge(env.Ctx, task.ID, 42, "Add parser"))
	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "review", got.Status)
	require.Len(t, got.Comments, 1)
	assert.Contains(t, got.Comments[0].Content, "PR #42 merged")
}

func TestPRMergeNeverDemotesDone(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Shipped already"})
	require.NoError(t, env.Engine.MoveTask(env.Ctx, task.ID, "done", 0, false, "clifton"))

	require.NoError(t, env.Engine.UpdateFromPRMerge(env.Ctx, task.ID, 7, "Late merge"))
	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "done", got.Status)
}
