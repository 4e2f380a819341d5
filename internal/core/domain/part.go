package domain

import "time"

// Triple identifies a part the way commands refer to it. Matching is exact:
// no case folding and no whitespace normalisation.
type Triple struct {
	Manufacturer string
	Part         string
	Model        string
}

type Part struct {
	ID           int64     `json:"id"`
	Manufacturer string    `json:"manufacturer" validate:"required,notblank"`
	Part         string    `json:"part" validate:"required,notblank"`
	Model        string    `json:"model"`
	Quantity     int       `json:"quantity" validate:"gte=0"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

func (p Part) Triple() Triple {
	return Triple{Manufacturer: p.Manufacturer, Part: p.Part, Model: p.Model}
}
