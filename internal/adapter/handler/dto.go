package handler

import "github.com/rl1809/autoparts-inventory/internal/core/domain"

// ChangeDTO is a change as submitted by clients. Quantity is a pointer so an
// omitted quantity (default 1) can be told apart from an explicit zero.
type ChangeDTO struct {
	Manufacturer string `json:"manufacturer"`
	Part         string `json:"part"`
	Model        string `json:"model"`
	Quantity     *int   `json:"quantity,omitempty"`
	Action       string `json:"action"`
}

type ProcessCommandRequest struct {
	Command string `json:"command" binding:"required"`
}

type ProcessCommandResponse struct {
	Changes     domain.ChangeSet `json:"changes"`
	CommandText string           `json:"commandText,omitempty"`
}

type ExecuteChangesRequest struct {
	Changes        []ChangeDTO `json:"changes" binding:"required"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
}

type ExecuteChangesResponse struct {
	Success  bool             `json:"success"`
	Outcomes []domain.Outcome `json:"outcomes"`
}

type ListPartsRequest struct{}

type ListPartsResponse struct {
	Parts []domain.Part `json:"parts"`
}

type UpdatePartRequest struct {
	ID           int64  `json:"id,omitempty"`
	Manufacturer string `json:"manufacturer" binding:"required"`
	Part         string `json:"part" binding:"required"`
	Model        string `json:"model"`
	Quantity     *int   `json:"quantity" binding:"required"`
}

type UpdatePartResponse struct {
	Success bool `json:"success"`
}

type DeletePartsRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

type DeletePartsResponse struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
}

func toChangeSet(in []ChangeDTO) domain.ChangeSet {
	cs := make(domain.ChangeSet, 0, len(in))
	for _, c := range in {
		qty := domain.DefaultQuantity
		if c.Quantity != nil {
			qty = *c.Quantity
		}
		cs = append(cs, domain.Change{
			Manufacturer: c.Manufacturer,
			Part:         c.Part,
			Model:        c.Model,
			Quantity:     qty,
			Action:       domain.Action(c.Action),
		})
	}
	return cs
}

func (r UpdatePartRequest) toPart(id int64) domain.Part {
	p := domain.Part{
		ID:           id,
		Manufacturer: r.Manufacturer,
		Part:         r.Part,
		Model:        r.Model,
	}
	if r.Quantity != nil {
		p.Quantity = *r.Quantity
	}
	return p
}

func nonNilChanges(cs domain.ChangeSet) domain.ChangeSet {
	if cs == nil {
		return domain.ChangeSet{}
	}
	return cs
}

func nonNilOutcomes(o []domain.Outcome) []domain.Outcome {
	if o == nil {
		return []domain.Outcome{}
	}
	return o
}

func nonNilParts(p []domain.Part) []domain.Part {
	if p == nil {
		return []domain.Part{}
	}
	return p
}
