package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"groundcontrol/internal/config"
	"groundcontrol/internal/engine"
	"groundcontrol/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	GitHub   GitHubConfig
	Log      zerolog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"blocked"`
	Message string         `json:"message" example:"task is blocked by incomplete tasks"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the GroundControl API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("GroundControl API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerStatus(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerComments(group, cfg.Engine)
	registerTimer(group, cfg.Engine)
	registerProspects(group, cfg.Engine)
	registerActivity(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerTemplates(group, cfg.Engine)
	registerGitHubWebhook(router, basePath, cfg.Engine, cfg.GitHub, cfg.Log)

	return router, nil
}

// AuthFromConfig maps workspace config onto the middleware settings.
func AuthFromConfig(cfg *config.Config) AuthConfig {
	return AuthConfig{
		JWTSecret:        cfg.Server.JWTSecret,
		AllowActorHeader: cfg.Server.AllowActorHeader,
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine errors onto the envelope. Blocked transitions
// surface the incomplete blocker titles so clients can display them.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var blocked *engine.BlockedTransitionError
	if errors.As(err, &blocked) {
		return newAPIError(http.StatusConflict, "blocked", err.Error(), map[string]any{"blockers": blocked.Blockers})
	}
	var running *engine.TimerAlreadyRunningError
	if errors.As(err, &running) {
		return newAPIError(http.StatusConflict, "timer_running", err.Error(), map[string]any{"started_at": running.StartedAt})
	}
	var stopped *engine.NoTimerRunningError
	if errors.As(err, &stopped) {
		return newAPIError(http.StatusConflict, "no_timer", err.Error(), nil)
	}
	var missingEntry *engine.EntryNotFoundError
	if errors.As(err, &missingEntry) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var invalid *engine.ValidationError
	if errors.As(err, &invalid) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": invalid.Field})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStatus(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Board and pipeline counts",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatusResponse `json:"body"`
	}, error) {
		tasks, err := e.TaskStats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		pipeline, err := e.PipelineStats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StatusResponse `json:"body"`
		}{Body: StatusResponse{Tasks: tasks, Pipeline: pipeline}}, nil
	})
}
