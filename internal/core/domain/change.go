package domain

type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// DefaultQuantity is used when a change does not state how many parts it moves.
const DefaultQuantity = 1

// MaxQuantity bounds a single change so quantities stay far from int overflow.
const MaxQuantity = 1000000

type Change struct {
	Manufacturer string `json:"manufacturer" validate:"required,notblank"`
	Part         string `json:"part" validate:"required,notblank"`
	Model        string `json:"model"`
	Quantity     int    `json:"quantity" validate:"gte=1,lte=1000000"`
	Action       Action `json:"action" validate:"required,oneof=add remove"`
}

func (c Change) Triple() Triple {
	return Triple{Manufacturer: c.Manufacturer, Part: c.Part, Model: c.Model}
}

// Delta is the signed quantity change this record applies to a stored row.
func (c Change) Delta() int {
	if c.Action == ActionRemove {
		return -c.Quantity
	}
	return c.Quantity
}

// ChangeSet is applied in order; later changes to a triple see the effect of
// earlier ones.
type ChangeSet []Change

type OutcomeStatus string

const (
	OutcomeApplied    OutcomeStatus = "applied"
	OutcomeRejected   OutcomeStatus = "rejected"
	OutcomeRolledBack OutcomeStatus = "rolled_back"
)

type RejectReason string

const (
	RejectInsufficientQuantity RejectReason = "insufficient_quantity"
	RejectNotFound             RejectReason = "not_found"
)

// Outcome reports what reconciliation did with a single change.
type Outcome struct {
	Index     int           `json:"index"`
	Change    Change        `json:"change"`
	Status    OutcomeStatus `json:"status"`
	Reason    RejectReason  `json:"reason,omitempty"`
	Created   bool          `json:"created,omitempty"`
	Available int           `json:"available,omitempty"`
	Shortfall int           `json:"shortfall,omitempty"`
}

type ReconcileResult struct {
	Success  bool      `json:"success"`
	Outcomes []Outcome `json:"outcomes"`
}

// Rejected returns the outcomes that were not applied.
func (r *ReconcileResult) Rejected() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == OutcomeRejected {
			out = append(out, o)
		}
	}
	return out
}

// Applied returns the outcomes whose change reached the store.
func (r *ReconcileResult) Applied() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == OutcomeApplied {
			out = append(out, o)
		}
	}
	return out
}
