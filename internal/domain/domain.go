package domain

// Actor handles known to the system. Mentions and assignments only ever
// resolve against this fixed roster.
const (
	ActorClifton    = "clifton"
	ActorSage       = "sage"
	ActorSystem     = "system"
	ActorUnassigned = "unassigned"
)

// HumanActors are the actors that can be mentioned in comments.
var HumanActors = []string{ActorClifton, ActorSage}

// Task statuses. on_hold is a first-class status: it is accepted by
// create/update/move and counted in stats.
const (
	StatusBacklog    = "backlog"
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
	StatusOnHold     = "on_hold"
)

var TaskStatuses = []string{StatusBacklog, StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusOnHold}

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}

// Prospect stages for the sales pipeline.
const (
	StageLead        = "lead"
	StageSiteBuilt   = "site_built"
	StageOutreach    = "outreach"
	StageContacted   = "contacted"
	StageFollowUp    = "follow_up"
	StageNegotiating = "negotiating"
	StageClosedWon   = "closed_won"
	StageClosedLost  = "closed_lost"
)

var ProspectStages = []string{StageLead, StageSiteBuilt, StageOutreach, StageContacted, StageFollowUp, StageNegotiating, StageClosedWon, StageClosedLost}

const (
	UrgencyFresh     = "fresh"
	UrgencyWarm      = "warm"
	UrgencyCold      = "cold"
	UrgencyNoContact = "no_contact"
)

var Urgencies = []string{UrgencyFresh, UrgencyWarm, UrgencyCold, UrgencyNoContact}

// Activity actions. The taxonomy is closed; every observable mutation maps
// onto exactly these kinds.
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionMoved     = "moved"
	ActionCompleted = "completed"
	ActionCommented = "commented"
	ActionAssigned  = "assigned"
	ActionDeleted   = "deleted"
)

type Task struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Assignee     string      `json:"assignee" enum:"clifton,sage,unassigned"`
	Priority     string      `json:"priority" enum:"low,medium,high"`
	Status       string      `json:"status" enum:"backlog,todo,in_progress,review,done,on_hold"`
	Project      *string     `json:"project,omitempty"`
	DueDate      *string     `json:"due_date,omitempty" format:"date"`
	TimeEstimate *int        `json:"time_estimate,omitempty"`
	Position     int         `json:"position"`
	BlockedBy    []string    `json:"blocked_by,omitempty"`
	Recurring    *Recurrence `json:"recurring,omitempty"`
	Subtasks     []Subtask   `json:"subtasks,omitempty"`
	Comments     []Comment   `json:"comments,omitempty"`
	TimeEntries  []TimeEntry `json:"time_entries,omitempty"`
	// ActiveTimerStart is set while a time-tracking session is open.
	// At most one open timer exists per task.
	ActiveTimerStart *string `json:"active_timer_start,omitempty" format:"date-time"`
	// TotalTimeSpent is maintained incrementally and equals the sum of
	// TimeEntries durations, in minutes.
	TotalTimeSpent int    `json:"total_time_spent"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type Comment struct {
	ID        string   `json:"id"`
	Author    string   `json:"author" enum:"clifton,sage,system"`
	Content   string   `json:"content"`
	Mentions  []string `json:"mentions,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type TimeEntry struct {
	ID        string  `json:"id"`
	StartTime string  `json:"start_time" format:"date-time"`
	EndTime   string  `json:"end_time" format:"date-time"`
	Duration  int     `json:"duration"`
	Notes     *string `json:"notes,omitempty"`
}

type Recurrence struct {
	Frequency string  `json:"frequency" enum:"daily,weekly,monthly"`
	Interval  int     `json:"interval"`
	NextDue   *string `json:"next_due,omitempty" format:"date"`
}

type Prospect struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Stage     string  `json:"stage" enum:"lead,site_built,outreach,contacted,follow_up,negotiating,closed_won,closed_lost"`
	Urgency   string  `json:"urgency" enum:"fresh,warm,cold,no_contact"`
	Website   *string `json:"website,omitempty"`
	Contact   *string `json:"contact,omitempty"`
	Notes     string  `json:"notes,omitempty"`
	Position  int     `json:"position"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

// Activity is an immutable audit record. TaskTitle is a denormalized
// snapshot so the record stays readable after the task is deleted.
type Activity struct {
	ID        int64  `json:"id"`
	TaskID    string `json:"task_id"`
	TaskTitle string `json:"task_title"`
	Action    string `json:"action" enum:"created,updated,moved,completed,commented,assigned,deleted"`
	Actor     string `json:"actor" enum:"clifton,sage,system"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Template is a named bundle of defaults stamped onto new tasks.
type Template struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Priority     string    `json:"priority,omitempty" enum:"low,medium,high"`
	Project      *string   `json:"project,omitempty"`
	TimeEstimate *int      `json:"time_estimate,omitempty"`
	Subtasks     []Subtask `json:"subtasks,omitempty"`
	CreatedAt    string    `json:"created_at" format:"date-time"`
}

// BlockerStatus summarizes the blocking graph for one task.
type BlockerStatus struct {
	HasIncompleteBlockers bool      `json:"has_incomplete_blockers"`
	Blockers              []Blocker `json:"blockers,omitempty"`
}

type Blocker struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Done   bool   `json:"done"`
}

func ValidStatus(s string) bool   { return contains(TaskStatuses, s) }
func ValidStage(s string) bool    { return contains(ProspectStages, s) }
func ValidUrgency(s string) bool  { return contains(Urgencies, s) }
func ValidPriority(p string) bool { return contains(Priorities, p) }

func ValidAssignee(a string) bool {
	return a == ActorUnassigned || contains(HumanActors, a)
}

func ValidAuthor(a string) bool {
	return a == ActorSystem || contains(HumanActors, a)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
