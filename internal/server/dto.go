package server

import (
	"groundcontrol/internal/domain"
	"groundcontrol/internal/engine"
)

type StatusResponse struct {
	Tasks    engine.Stats         `json:"tasks"`
	Pipeline engine.ProspectStats `json:"pipeline"`
}

type CreateTaskRequest struct {
	Title        string             `json:"title" minLength:"1"`
	Description  string             `json:"description,omitempty"`
	Assignee     string             `json:"assignee,omitempty" enum:"clifton,sage,unassigned,"`
	Priority     string             `json:"priority,omitempty" enum:"low,medium,high,"`
	Status       string             `json:"status,omitempty" enum:"backlog,todo,in_progress,review,done,on_hold,"`
	Project      string             `json:"project,omitempty"`
	DueDate      string             `json:"due_date,omitempty" format:"date"`
	TimeEstimate *int               `json:"time_estimate,omitempty"`
	Subtasks     []string           `json:"subtasks,omitempty"`
	BlockedBy    []string           `json:"blocked_by,omitempty"`
	Recurring    *domain.Recurrence `json:"recurring,omitempty"`
	Template     string             `json:"template,omitempty"`
}

func (r CreateTaskRequest) options(actor string) engine.TaskCreateOptions {
	return engine.TaskCreateOptions{
		Title:        r.Title,
		Description:  r.Description,
		Assignee:     r.Assignee,
		Priority:     r.Priority,
		Status:       r.Status,
		Project:      r.Project,
		DueDate:      r.DueDate,
		TimeEstimate: r.TimeEstimate,
		Subtasks:     r.Subtasks,
		BlockedBy:    r.BlockedBy,
		Recurring:    r.Recurring,
		Actor:        actor,
	}
}

// UpdateTaskRequest uses pointer fields so absent keys leave the task
// untouched while explicit values, including empty strings, apply.
type UpdateTaskRequest struct {
	Title        *string            `json:"title,omitempty"`
	Description  *string            `json:"description,omitempty"`
	Assignee     *string            `json:"assignee,omitempty"`
	Priority     *string            `json:"priority,omitempty"`
	Status       *string            `json:"status,omitempty"`
	Project      *string            `json:"project,omitempty"`
	DueDate      *string            `json:"due_date,omitempty"`
	TimeEstimate *int               `json:"time_estimate,omitempty"`
	Recurring    *domain.Recurrence `json:"recurring,omitempty"`
	BlockedBy    *[]string          `json:"blocked_by,omitempty"`
	Force        bool               `json:"force,omitempty"`
}

func (r UpdateTaskRequest) options(actor string) engine.TaskUpdateOptions {
	return engine.TaskUpdateOptions{
		Title:        r.Title,
		Description:  r.Description,
		Assignee:     r.Assignee,
		Priority:     r.Priority,
		Status:       r.Status,
		Project:      r.Project,
		DueDate:      r.DueDate,
		TimeEstimate: r.TimeEstimate,
		Recurring:    r.Recurring,
		BlockedBy:    r.BlockedBy,
		Force:        r.Force,
		Actor:        actor,
	}
}

type MoveTaskRequest struct {
	Status string `json:"status" enum:"backlog,todo,in_progress,review,done,on_hold"`
	Order  int    `json:"order" minimum:"0"`
	Force  bool   `json:"force,omitempty"`
}

type BulkUpdateRequest struct {
	IDs []string `json:"ids" minItems:"1"`
	UpdateTaskRequest
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids" minItems:"1"`
}

type BulkResponse struct {
	Updated int `json:"updated,omitempty"`
	Deleted int `json:"deleted,omitempty"`
}

type CommentRequest struct {
	Content string `json:"content" minLength:"1"`
}

type ManualTimeRequest struct {
	Minutes   int     `json:"minutes" minimum:"1"`
	StartTime string  `json:"start_time,omitempty" format:"date-time"`
	Notes     *string `json:"notes,omitempty"`
}

type StopTimerRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type CreateProspectRequest struct {
	Name    string `json:"name" minLength:"1"`
	Stage   string `json:"stage,omitempty" enum:"lead,site_built,outreach,contacted,follow_up,negotiating,closed_won,closed_lost,"`
	Urgency string `json:"urgency,omitempty" enum:"fresh,warm,cold,no_contact,"`
	Website string `json:"website,omitempty"`
	Contact string `json:"contact,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type UpdateProspectRequest struct {
	Name    *string `json:"name,omitempty"`
	Urgency *string `json:"urgency,omitempty"`
	Website *string `json:"website,omitempty"`
	Contact *string `json:"contact,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

type MoveProspectRequest struct {
	Stage string `json:"stage" enum:"lead,site_built,outreach,contacted,follow_up,negotiating,closed_won,closed_lost"`
	Order *int   `json:"order,omitempty" minimum:"0"`
}

type CreateProjectRequest struct {
	Name  string `json:"name" minLength:"1"`
	Color string `json:"color,omitempty"`
}

type CreateTemplateRequest struct {
	Name         string   `json:"name" minLength:"1"`
	Description  string   `json:"description,omitempty"`
	Priority     string   `json:"priority,omitempty" enum:"low,medium,high,"`
	Project      string   `json:"project,omitempty"`
	TimeEstimate *int     `json:"time_estimate,omitempty"`
	Subtasks     []string `json:"subtasks,omitempty"`
}

func (r CreateTemplateRequest) template() domain.Template {
	tpl := domain.Template{
		Name:         r.Name,
		Description:  r.Description,
		Priority:     r.Priority,
		TimeEstimate: r.TimeEstimate,
	}
	if r.Project != "" {
		tpl.Project = &r.Project
	}
	for _, title := range r.Subtasks {
		tpl.Subtasks = append(tpl.Subtasks, domain.Subtask{Title: title})
	}
	return tpl
}
