package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"groundcontrol/internal/domain"
	"groundcontrol/internal/engine"
)

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "recent-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Recent activity, newest first",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []domain.Activity `json:"body"`
	}, error) {
		items, err := e.Repo.RecentActivity(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Activity `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-activity",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/activity",
		Summary:     "Activity for one task, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body []domain.Activity `json:"body"`
	}, error) {
		items, err := e.Repo.ActivityForTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Activity `json:"body"`
		}{Body: items}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.CreateProject(ctx, input.Body.Name, input.Body.Color)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		items, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: items}, nil
	})
}

func registerTemplates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/templates",
		Summary:       "Create task template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateTemplateRequest `json:"body"`
	}) (*struct {
		Body domain.Template `json:"body"`
	}, error) {
		tpl, err := e.CreateTemplate(ctx, input.Body.template())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Template `json:"body"`
		}{Body: tpl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List task templates",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Template `json:"body"`
	}, error) {
		items, err := e.Repo.ListTemplates(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Template `json:"body"`
		}{Body: items}, nil
	})
}
