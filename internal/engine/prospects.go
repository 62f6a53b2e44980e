package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"groundcontrol/internal/domain"
	"groundcontrol/internal/repo"
)

// ProspectCreateOptions are parameters for adding a pipeline prospect.
type ProspectCreateOptions struct {
	Name    string
	Stage   string
	Urgency string
	Website string
	Contact string
	Notes   string
}

// CreateProspect appends a prospect to the end of its stage column.
func (e Engine) CreateProspect(ctx context.Context, opts ProspectCreateOptions) (domain.Prospect, error) {
	if opts.Name == "" {
		return domain.Prospect{}, &ValidationError{Field: "name", Reason: "required"}
	}
	if opts.Stage == "" {
		opts.Stage = domain.StageLead
	}
	if !domain.ValidStage(opts.Stage) {
		return domain.Prospect{}, &ValidationError{Field: "stage", Reason: fmt.Sprintf("unknown stage %q", opts.Stage)}
	}
	if opts.Urgency == "" {
		opts.Urgency = domain.UrgencyFresh
	}
	if !domain.ValidUrgency(opts.Urgency) {
		return domain.Prospect{}, &ValidationError{Field: "urgency", Reason: fmt.Sprintf("unknown urgency %q", opts.Urgency)}
	}
	now := e.nowString()
	p := domain.Prospect{
		ID:        uuid.New().String(),
		Name:      opts.Name,
		Stage:     opts.Stage,
		Urgency:   opts.Urgency,
		Notes:     opts.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.Website != "" {
		p.Website = &opts.Website
	}
	if opts.Contact != "" {
		p.Contact = &opts.Contact
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Prospect{}, err
	}
	defer tx.Rollback()

	pos, err := e.Repo.NextProspectPosition(ctx, tx, p.Stage)
	if err != nil {
		return domain.Prospect{}, err
	}
	p.Position = pos
	if err := e.Repo.InsertProspect(ctx, tx, p); err != nil {
		return domain.Prospect{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Prospect{}, err
	}
	return p, nil
}

// ProspectUpdateOptions carries partial field updates; nil fields are
// left untouched. Stage changes go through MoveProspect so ordering
// stays dense.
type ProspectUpdateOptions struct {
	Name    *string
	Urgency *string
	Website *string
	Contact *string
	Notes   *string
}

func (e Engine) UpdateProspect(ctx context.Context, id string, opts ProspectUpdateOptions) (domain.Prospect, error) {
	if opts.Name != nil && *opts.Name == "" {
		return domain.Prospect{}, &ValidationError{Field: "name", Reason: "required"}
	}
	if opts.Urgency != nil && !domain.ValidUrgency(*opts.Urgency) {
		return domain.Prospect{}, &ValidationError{Field: "urgency", Reason: fmt.Sprintf("unknown urgency %q", *opts.Urgency)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Prospect{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProspectTx(ctx, tx, id)
	if err != nil {
		return domain.Prospect{}, err
	}
	if opts.Name != nil {
		p.Name = *opts.Name
	}
	if opts.Urgency != nil {
		p.Urgency = *opts.Urgency
	}
	if opts.Website != nil {
		p.Website = opts.Website
	}
	if opts.Contact != nil {
		p.Contact = opts.Contact
	}
	if opts.Notes != nil {
		p.Notes = *opts.Notes
	}
	p.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateProspect(ctx, tx, p); err != nil {
		return domain.Prospect{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Prospect{}, err
	}
	return p, nil
}

// MoveProspect relocates a prospect across or within stage columns,
// keeping positions in both affected columns contiguous. An out of
// range newOrder appends to the end of the destination.
func (e Engine) MoveProspect(ctx context.Context, id, newStage string, newOrder *int) (domain.Prospect, error) {
	if !domain.ValidStage(newStage) {
		return domain.Prospect{}, &ValidationError{Field: "stage", Reason: fmt.Sprintf("unknown stage %q", newStage)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Prospect{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProspectTx(ctx, tx, id)
	if err != nil {
		return domain.Prospect{}, err
	}

	if p.Stage != newStage {
		if err := e.Repo.CloseProspectGap(ctx, tx, p.Stage, p.Position); err != nil {
			return domain.Prospect{}, err
		}
		end, err := e.Repo.NextProspectPosition(ctx, tx, newStage)
		if err != nil {
			return domain.Prospect{}, err
		}
		target := end
		if newOrder != nil && *newOrder >= 0 && *newOrder < end {
			target = *newOrder
			if err := e.Repo.MakeProspectRoom(ctx, tx, newStage, target); err != nil {
				return domain.Prospect{}, err
			}
		}
		p.Stage = newStage
		p.Position = target
	} else if newOrder != nil && *newOrder != p.Position {
		end, err := e.Repo.NextProspectPosition(ctx, tx, p.Stage)
		if err != nil {
			return domain.Prospect{}, err
		}
		target := *newOrder
		if target < 0 || target >= end {
			target = end - 1
		}
		if target != p.Position {
			if err := e.Repo.ShiftProspectsWithin(ctx, tx, p.Stage, p.Position, target); err != nil {
				return domain.Prospect{}, err
			}
			p.Position = target
		}
	}

	p.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateProspect(ctx, tx, p); err != nil {
		return domain.Prospect{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Prospect{}, err
	}
	return p, nil
}

// DeleteProspect removes the prospect and closes the gap it leaves in
// its stage column. A missing id is a no-op.
func (e Engine) DeleteProspect(ctx context.Context, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProspectTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := e.Repo.DeleteProspect(ctx, tx, p.ID); err != nil {
		return err
	}
	if err := e.Repo.CloseProspectGap(ctx, tx, p.Stage, p.Position); err != nil {
		return err
	}
	return tx.Commit()
}

// ProspectStats counts prospects per pipeline stage.
type ProspectStats struct {
	Total   int            `json:"total"`
	ByStage map[string]int `json:"by_stage"`
}

func (e Engine) PipelineStats(ctx context.Context) (ProspectStats, error) {
	byStage, err := e.Repo.CountProspectsByStage(ctx)
	if err != nil {
		return ProspectStats{}, err
	}
	total := 0
	for _, n := range byStage {
		total += n
	}
	return ProspectStats{Total: total, ByStage: byStage}, nil
}
