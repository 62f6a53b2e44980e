package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"groundcontrol/internal/domain"
	"groundcontrol/internal/engine"
	"groundcontrol/internal/repo"
)

type prospectPath struct {
	ProspectID string `path:"prospect_id"`
}

func registerProspects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-prospect",
		Method:        http.MethodPost,
		Path:          "/prospects",
		Summary:       "Add a pipeline prospect",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateProspectRequest `json:"body"`
	}) (*struct {
		Body domain.Prospect `json:"body"`
	}, error) {
		p, err := e.CreateProspect(ctx, engine.ProspectCreateOptions{
			Name:    input.Body.Name,
			Stage:   input.Body.Stage,
			Urgency: input.Body.Urgency,
			Website: input.Body.Website,
			Contact: input.Body.Contact,
			Notes:   input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Prospect `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-prospects",
		Method:      http.MethodGet,
		Path:        "/prospects",
		Summary:     "List prospects ordered by pipeline position",
	}, func(ctx context.Context, input *struct {
		Stage   string `query:"stage" enum:"lead,site_built,outreach,contacted,follow_up,negotiating,closed_won,closed_lost,"`
		Urgency string `query:"urgency" enum:"fresh,warm,cold,no_contact,"`
	}) (*struct {
		Body []domain.Prospect `json:"body"`
	}, error) {
		items, err := e.Repo.ListProspects(ctx, repo.ProspectFilters{
			Stage:   input.Stage,
			Urgency: input.Urgency,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Prospect `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-prospect",
		Method:      http.MethodGet,
		Path:        "/prospects/{prospect_id}",
		Summary:     "Get prospect",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *prospectPath) (*struct {
		Body domain.Prospect `json:"body"`
	}, error) {
		p, err := e.Repo.GetProspect(ctx, input.ProspectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Prospect `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-prospect",
		Method:      http.MethodPatch,
		Path:        "/prospects/{prospect_id}",
		Summary:     "Update prospect fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProspectID string                `path:"prospect_id"`
		Body       UpdateProspectRequest `json:"body"`
	}) (*struct {
		Body domain.Prospect `json:"body"`
	}, error) {
		p, err := e.UpdateProspect(ctx, input.ProspectID, engine.ProspectUpdateOptions{
			Name:    input.Body.Name,
			Urgency: input.Body.Urgency,
			Website: input.Body.Website,
			Contact: input.Body.Contact,
			Notes:   input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Prospect `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-prospect",
		Method:      http.MethodPost,
		Path:        "/prospects/{prospect_id}/move",
		Summary:     "Move prospect to a stage and position",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProspectID string              `path:"prospect_id"`
		Body       MoveProspectRequest `json:"body"`
	}) (*struct {
		Body domain.Prospect `json:"body"`
	}, error) {
		p, err := e.MoveProspect(ctx, input.ProspectID, input.Body.Stage, input.Body.Order)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Prospect `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-prospect",
		Method:      http.MethodDelete,
		Path:        "/prospects/{prospect_id}",
		Summary:     "Delete prospect",
	}, func(ctx context.Context, input *prospectPath) (*struct{}, error) {
		if err := e.DeleteProspect(ctx, input.ProspectID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
