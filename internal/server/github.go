package server

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"groundcontrol/internal/engine"
)

type GitHubConfig struct {
	Secret string
}

// Task reference patterns accepted in commit messages, PR titles, and
// branch names. Matches resolve against stored ids by substring, which
// is deliberately fuzzy; exact-match id lookup stays inside the engine.
var taskRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[TASK-([A-Za-z0-9-]+)\]`),
	regexp.MustCompile(`#([A-Za-z0-9]{8,})`),
	regexp.MustCompile(`(?i)task[:\s]+([A-Za-z0-9-]+)`),
}

func extractTaskRefs(texts ...string) []string {
	var refs []string
	seen := map[string]bool{}
	for _, text := range texts {
		for _, pattern := range taskRefPatterns {
			for _, m := range pattern.FindAllStringSubmatch(text, -1) {
				ref := m[1]
				if !seen[ref] {
					seen[ref] = true
					refs = append(refs, ref)
				}
			}
		}
	}
	return refs
}

type pushPayload struct {
	Ref     string `json:"ref"`
	Commits []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commits"`
}

type pullRequestPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		Merged bool   `json:"merged"`
		Head   struct {
			Ref string `json:"ref"`
		} `json:"head"`
	} `json:"pull_request"`
}

func registerGitHubWebhook(router chi.Router, basePath string, e engine.Engine, cfg GitHubConfig, log zerolog.Logger) {
	router.Post(path.Join(basePath, "webhooks/github"), func(w http.ResponseWriter, r *http.Request) {
		if cfg.Secret != "" {
			got := strings.TrimSpace(r.Header.Get("X-Webhook-Secret"))
			if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.Secret)) != 1 {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid webhook secret", nil))
				return
			}
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "unreadable body", nil))
			return
		}

		handled := 0
		switch r.Header.Get("X-GitHub-Event") {
		case "push":
			var payload pushPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "malformed push payload", nil))
				return
			}
			for _, commit := range payload.Commits {
				for _, id := range resolveRefs(r, e, extractTaskRefs(commit.Message)) {
					if err := e.AddGitHubCommit(r.Context(), id, commit.ID, commit.Message, commit.Author.Name); err != nil {
						log.Warn().Err(err).Str("task_id", id).Msg("github: record commit failed")
						continue
					}
					handled++
				}
			}
		case "pull_request":
			var payload pullRequestPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "malformed pull_request payload", nil))
				return
			}
			if payload.Action == "closed" && payload.PullRequest.Merged {
				refs := extractTaskRefs(payload.PullRequest.Title, payload.PullRequest.Body, payload.PullRequest.Head.Ref)
				for _, id := range resolveRefs(r, e, refs) {
					if err := e.UpdateFromPRMerge(r.Context(), id, payload.PullRequest.Number, payload.PullRequest.Title); err != nil {
						log.Warn().Err(err).Str("task_id", id).Msg("github: record PR merge failed")
						continue
					}
					handled++
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"handled": handled})
	})
}

// resolveRefs maps reference fragments onto stored task ids. A fragment
// matching more than one id applies to all of them.
func resolveRefs(r *http.Request, e engine.Engine, refs []string) []string {
	var ids []string
	seen := map[string]bool{}
	for _, ref := range refs {
		matches, err := e.Repo.MatchTaskIDs(r.Context(), ref)
		if err != nil {
			continue
		}
		for _, id := range matches {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
