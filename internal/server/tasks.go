package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"groundcontrol/internal/domain"
	"groundcontrol/internal/engine"
	"groundcontrol/internal/repo"
)

type taskPath struct {
	TaskID string `path:"task_id"`
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var t domain.Task
		var err error
		if input.Body.Template != "" {
			t, err = e.CreateTaskFromTemplate(ctx, input.Body.Template, input.Body.options(actor))
		} else {
			t, err = e.CreateTask(ctx, input.Body.options(actor))
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks ordered by board position",
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status" enum:"backlog,todo,in_progress,review,done,on_hold,"`
		Assignee string `query:"assignee" enum:"clifton,sage,unassigned,"`
		Project  string `query:"project"`
		Priority string `query:"priority" enum:"low,medium,high,"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		items, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
			Status:   input.Status,
			Assignee: input.Assignee,
			Project:  input.Project,
			Priority: input.Priority,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task with subtasks, comments, and time entries",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTask(ctx, input.TaskID, input.Body.options(actor))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/move",
		Summary:     "Move task to a status column and position",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		TaskID string          `path:"task_id"`
		Body   MoveTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.MoveTask(ctx, input.TaskID, input.Body.Status, input.Body.Order, input.Body.Force, actor); err != nil {
			return nil, handleError(err)
		}
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, input.TaskID, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-update-tasks",
		Method:      http.MethodPost,
		Path:        "/tasks/bulk/update",
		Summary:     "Update several tasks, skipping missing ids",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body BulkUpdateRequest `json:"body"`
	}) (*struct {
		Body BulkResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.BulkUpdateTasks(ctx, input.Body.IDs, input.Body.options(actor))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BulkResponse `json:"body"`
		}{Body: BulkResponse{Updated: n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-delete-tasks",
		Method:      http.MethodPost,
		Path:        "/tasks/bulk/delete",
		Summary:     "Delete several tasks, skipping missing ids",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body BulkDeleteRequest `json:"body"`
	}) (*struct {
		Body BulkResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.BulkDeleteTasks(ctx, input.Body.IDs, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BulkResponse `json:"body"`
		}{Body: BulkResponse{Deleted: n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-blockers",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/blockers",
		Summary:     "Blocker status for a task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body domain.BlockerStatus `json:"body"`
	}, error) {
		status, err := e.BlockerStatus(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.BlockerStatus `json:"body"`
		}{Body: status}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-subtask",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/subtasks/{subtask_id}/toggle",
		Summary:     "Toggle subtask completion",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID    string `path:"task_id"`
		SubtaskID string `path:"subtask_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.ToggleSubtask(ctx, input.TaskID, input.SubtaskID, actor); err != nil {
			return nil, handleError(err)
		}
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}

func registerComments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-comment",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/comments",
		Summary:       "Add comment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string         `path:"task_id"`
		Body   CommentRequest `json:"body"`
	}) (*struct {
		Body domain.Comment `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.AddComment(ctx, input.TaskID, actor, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Comment `json:"body"`
		}{Body: c}, nil
	})
}

func registerTimer(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "start-timer",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/timer/start",
		Summary:     "Start time tracking",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.StartTimer(ctx, input.TaskID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stop-timer",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/timer/stop",
		Summary:     "Stop time tracking and record an entry",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		TaskID string           `path:"task_id"`
		Body   StopTimerRequest `json:"body"`
	}) (*struct {
		Body domain.TimeEntry `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.StopTimer(ctx, input.TaskID, actor, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TimeEntry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-manual-time",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/time",
		Summary:       "Record time without a timer",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   ManualTimeRequest `json:"body"`
	}) (*struct {
		Body domain.TimeEntry `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.AddManualTime(ctx, input.TaskID, actor, input.Body.Minutes, input.Body.StartTime, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TimeEntry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-time-entry",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}/time/{entry_id}",
		Summary:     "Delete a time entry",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID  string `path:"task_id"`
		EntryID string `path:"entry_id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTimeEntry(ctx, input.TaskID, input.EntryID, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
