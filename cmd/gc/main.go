package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"groundcontrol/internal/app"
	"groundcontrol/internal/db"
	"groundcontrol/internal/domain"
	"groundcontrol/internal/engine"
	"groundcontrol/internal/repo"
	"groundcontrol/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "gc",
	Short: "GroundControl CLI",
	Long: `GroundControl tracks tasks on a kanban board and prospects in a sales
pipeline. Every mutation is attributed to an actor and recorded in an
append-only activity log; mentions of the watched collaborator schedule
notifications.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GROUNDCONTROL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor", domain.ActorClifton, "acting user")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
}

func registerCommands() {
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(prospectCmd())
	rootCmd.AddCommand(timerCmd())
	rootCmd.AddCommand(commentCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(serveCmd())
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func actor() string { return viper.GetString("actor") }

func printJSONOrTable(v any) error {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskShowCmd())
	cmd.AddCommand(taskUpdateCmd())
	cmd.AddCommand(taskMoveCmd())
	cmd.AddCommand(taskDeleteCmd())
	cmd.AddCommand(taskToggleCmd())
	cmd.AddCommand(taskBlockersCmd())
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var template, dueDate string
	var estimate int
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				opts.Title = args[0]
				opts.DueDate = dueDate
				opts.Actor = actor()
				if cmd.Flags().Changed("estimate") {
					opts.TimeEstimate = &estimate
				}
				var t domain.Task
				var err error
				if template != "" {
					t, err = a.Engine.CreateTaskFromTemplate(ctx, template, opts)
				} else {
					t, err = a.Engine.CreateTask(ctx, opts)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Description, "description", "", "task description")
	cmd.Flags().StringVar(&opts.Assignee, "assignee", "", "assignee handle")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "low|medium|high")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status column")
	cmd.Flags().StringVar(&opts.Project, "project", "", "project id")
	cmd.Flags().StringVar(&dueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&estimate, "estimate", 0, "time estimate in minutes")
	cmd.Flags().StringSliceVar(&opts.Subtasks, "subtask", nil, "subtask title (repeatable)")
	cmd.Flags().StringSliceVar(&opts.BlockedBy, "blocked-by", nil, "blocker task id (repeatable)")
	cmd.Flags().StringVar(&template, "template", "", "template id to stamp from")
	return cmd
}

func taskListCmd() *cobra.Command {
	var filters repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in board order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Repo.ListTasks(ctx, filters)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSONOrTable(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Pos", "Assignee", "Priority", "Due"})
				for _, t := range items {
					due := ""
					if t.DueDate != nil {
						due = *t.DueDate
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Position, t.Assignee, t.Priority, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filters.Assignee, "assignee", "", "filter by assignee")
	cmd.Flags().StringVar(&filters.Project, "project", "", "filter by project")
	cmd.Flags().StringVar(&filters.Priority, "priority", "", "filter by priority")
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with subtasks, comments, and time entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, assignee, priority, status, project, due string
	var estimate int
	var blockedBy []string
	var force bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				opts := engine.TaskUpdateOptions{Force: force, Actor: actor()}
				if cmd.Flags().Changed("title") {
					opts.Title = &title
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &description
				}
				if cmd.Flags().Changed("assignee") {
					opts.Assignee = &assignee
				}
				if cmd.Flags().Changed("priority") {
					opts.Priority = &priority
				}
				if cmd.Flags().Changed("status") {
					opts.Status = &status
				}
				if cmd.Flags().Changed("project") {
					opts.Project = &project
				}
				if cmd.Flags().Changed("due") {
					opts.DueDate = &due
				}
				if cmd.Flags().Changed("estimate") {
					opts.TimeEstimate = &estimate
				}
				if cmd.Flags().Changed("blocked-by") {
					opts.BlockedBy = &blockedBy
				}
				t, err := a.Engine.UpdateTask(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&assignee, "assignee", "", "new assignee")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&project, "project", "", "new project")
	cmd.Flags().StringVar(&due, "due", "", "new due date")
	cmd.Flags().IntVar(&estimate, "estimate", 0, "new time estimate")
	cmd.Flags().StringSliceVar(&blockedBy, "blocked-by", nil, "replace blocker list")
	cmd.Flags().BoolVar(&force, "force", false, "complete even when blocked")
	return cmd
}

func taskMoveCmd() *cobra.Command {
	var order int
	var force bool
	cmd := &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a task to a status column and position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.MoveTask(ctx, args[0], args[1], order, force, actor()); err != nil {
					return err
				}
				t, err := a.Engine.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().IntVar(&order, "order", 0, "target position in the column")
	cmd.Flags().BoolVar(&force, "force", false, "complete even when blocked")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Engine.BulkDeleteTasks(ctx, args, actor())
				if err != nil {
					return err
				}
				fmt.Printf("deleted %d task(s)\n", n)
				return nil
			})
		},
	}
	return cmd
}

func taskToggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle <task-id> <subtask-id>",
		Short: "Toggle a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.ToggleSubtask(ctx, args[0], args[1], actor()); err != nil {
					return err
				}
				t, err := a.Engine.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskBlockersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blockers <id>",
		Short: "Show blocker status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				status, err := a.Engine.BlockerStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(status)
			})
		},
	}
	return cmd
}

func prospectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "prospect", Short: "Manage pipeline prospects"}
	cmd.AddCommand(prospectAddCmd())
	cmd.AddCommand(prospectListCmd())
	cmd.AddCommand(prospectMoveCmd())
	cmd.AddCommand(prospectUpdateCmd())
	cmd.AddCommand(prospectDeleteCmd())
	return cmd
}

func prospectAddCmd() *cobra.Command {
	var opts engine.ProspectCreateOptions
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a prospect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				opts.Name = args[0]
				p, err := a.Engine.CreateProspect(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Stage, "stage", "", "pipeline stage")
	cmd.Flags().StringVar(&opts.Urgency, "urgency", "", "fresh|warm|cold|no_contact")
	cmd.Flags().StringVar(&opts.Website, "website", "", "website URL")
	cmd.Flags().StringVar(&opts.Contact, "contact", "", "contact info")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	return cmd
}

func prospectListCmd() *cobra.Command {
	var filters repo.ProspectFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prospects in pipeline order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Repo.ListProspects(ctx, filters)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSONOrTable(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Stage", "Pos", "Urgency"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Stage, p.Position, p.Urgency})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filters.Stage, "stage", "", "filter by stage")
	cmd.Flags().StringVar(&filters.Urgency, "urgency", "", "filter by urgency")
	return cmd
}

func prospectMoveCmd() *cobra.Command {
	var order int
	cmd := &cobra.Command{
		Use:   "move <id> <stage>",
		Short: "Move a prospect to a stage and position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var orderPtr *int
				if cmd.Flags().Changed("order") {
					orderPtr = &order
				}
				p, err := a.Engine.MoveProspect(ctx, args[0], args[1], orderPtr)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().IntVar(&order, "order", 0, "target position in the stage")
	return cmd
}

func prospectUpdateCmd() *cobra.Command {
	var name, urgency, website, contact, notes string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update prospect fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				opts := engine.ProspectUpdateOptions{}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("urgency") {
					opts.Urgency = &urgency
				}
				if cmd.Flags().Changed("website") {
					opts.Website = &website
				}
				if cmd.Flags().Changed("contact") {
					opts.Contact = &contact
				}
				if cmd.Flags().Changed("notes") {
					opts.Notes = &notes
				}
				p, err := a.Engine.UpdateProspect(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&urgency, "urgency", "", "new urgency")
	cmd.Flags().StringVar(&website, "website", "", "new website")
	cmd.Flags().StringVar(&contact, "contact", "", "new contact")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	return cmd
}

func prospectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a prospect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.DeleteProspect(ctx, args[0])
			})
		},
	}
	return cmd
}

func timerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "timer", Short: "Track time on tasks"}
	cmd.AddCommand(timerStartCmd())
	cmd.AddCommand(timerStopCmd())
	cmd.AddCommand(timerLogCmd())
	cmd.AddCommand(timerDeleteCmd())
	return cmd
}

func timerStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <task-id>",
		Short: "Start a timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.StartTimer(ctx, args[0], actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func timerStopCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "stop <task-id>",
		Short: "Stop the timer and record an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var notesPtr *string
				if cmd.Flags().Changed("notes") {
					notesPtr = &notes
				}
				entry, err := a.Engine.StopTimer(ctx, args[0], actor(), notesPtr)
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "entry notes")
	return cmd
}

func timerLogCmd() *cobra.Command {
	var minutes int
	var start, notes string
	cmd := &cobra.Command{
		Use:   "log <task-id>",
		Short: "Record time without a timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var notesPtr *string
				if cmd.Flags().Changed("notes") {
					notesPtr = &notes
				}
				entry, err := a.Engine.AddManualTime(ctx, args[0], actor(), minutes, start, notesPtr)
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "duration in minutes")
	cmd.Flags().StringVar(&start, "start", "", "start time (RFC 3339), defaults to backdating from now")
	cmd.Flags().StringVar(&notes, "notes", "", "entry notes")
	_ = cmd.MarkFlagRequired("minutes")
	return cmd
}

func timerDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <task-id> <entry-id>",
		Short: "Delete a time entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.DeleteTimeEntry(ctx, args[0], args[1], actor())
			})
		},
	}
	return cmd
}

func commentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment <task-id> <content>",
		Short: "Add a comment; @mentions of known actors are extracted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.AddComment(ctx, args[0], actor(), args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func activityCmd() *cobra.Command {
	var limit int
	var taskID string
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent activity, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var items []domain.Activity
				var err error
				if taskID != "" {
					items, err = a.Engine.Repo.ActivityForTask(ctx, taskID)
				} else {
					items, err = a.Engine.Repo.RecentActivity(ctx, limit)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSONOrTable(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Actor", "Action", "Task", "Details"})
				for _, item := range items {
					tw.AppendRow(table.Row{item.CreatedAt, item.Actor, item.Action, item.TaskTitle, item.Details})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max records")
	cmd.Flags().StringVar(&taskID, "task", "", "limit to one task")
	return cmd
}

func boardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Board and pipeline counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tasks, err := a.Engine.TaskStats(ctx)
				if err != nil {
					return err
				}
				pipeline, err := a.Engine.PipelineStats(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"tasks": tasks, "pipeline": pipeline})
			})
		},
	}
	return cmd
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.CreateProject(ctx, args[0], "")
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Repo.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	return cmd
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "template", Short: "Manage task templates"}
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a template",
		Args:  cobra.ExactArgs(1),
	}
	var description, priority, project string
	var estimate int
	var subtasks []string
	createCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			tpl := domain.Template{
				Name:        args[0],
				Description: description,
				Priority:    priority,
			}
			if project != "" {
				tpl.Project = &project
			}
			if createCmd.Flags().Changed("estimate") {
				tpl.TimeEstimate = &estimate
			}
			for _, title := range subtasks {
				tpl.Subtasks = append(tpl.Subtasks, domain.Subtask{Title: title})
			}
			created, err := a.Engine.CreateTemplate(ctx, tpl)
			if err != nil {
				return err
			}
			return printJSONOrTable(created)
		})
	}
	createCmd.Flags().StringVar(&description, "description", "", "default description")
	createCmd.Flags().StringVar(&priority, "priority", "", "default priority")
	createCmd.Flags().StringVar(&project, "project", "", "default project")
	createCmd.Flags().IntVar(&estimate, "estimate", 0, "default time estimate")
	createCmd.Flags().StringSliceVar(&subtasks, "subtask", nil, "default subtask title (repeatable)")
	cmd.AddCommand(createCmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Repo.ListTemplates(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				handler, err := server.New(server.Config{
					Engine:   a.Engine,
					BasePath: basePath,
					Auth:     server.AuthFromConfig(a.Config),
					GitHub:   server.GitHubConfig{Secret: a.Config.GitHub.Secret},
					Log:      a.Log,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving GroundControl API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}
