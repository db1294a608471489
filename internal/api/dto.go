package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tribuna/internal/caseservice"
	"github.com/starford/tribuna/internal/cnj"
	"github.com/starford/tribuna/internal/models"
	"github.com/starford/tribuna/internal/movement"
)

var cnjNumber = validation.By(func(v any) error {
	s, _ := v.(string)
	if s != "" && !cnj.Valid(s) {
		return errors.New("must contain 20 digits")
	}
	return nil
})

// CreateCaseRequest is the request body for registering a case.
type CreateCaseRequest struct {
	Numero     string           `json:"numero" example:"0001234-56.2024.8.26.0100" validate:"required"`
	Title      string           `json:"title,omitempty" example:"Ação de cobrança"`
	Monitoring bool             `json:"monitoring_enabled"`
	Frequency  models.Frequency `json:"check_frequency,omitempty" example:"daily"`
}

// Validate validates the request.
func (r CreateCaseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Numero, validation.Required, cnjNumber),
		validation.Field(&r.Title, validation.Length(0, 200)),
		validation.Field(&r.Frequency, validation.In(models.Frequencies...)),
	)
}

// MonitoringRequest is the request body for updating polling settings.
type MonitoringRequest struct {
	Enabled   bool             `json:"monitoring_enabled"`
	Frequency models.Frequency `json:"check_frequency,omitempty" example:"weekly"`
}

// Validate validates the request.
func (r MonitoringRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Frequency, validation.In(models.Frequencies...)),
	)
}

// CaseDetail is the full case response type (aliased from the domain layer).
type CaseDetail = caseservice.CaseDetail

// RefreshResult is returned by refresh and import (aliased from the domain layer).
type RefreshResult = caseservice.RefreshResult

// CaseListResponse wraps paginated case listings.
type CaseListResponse struct {
	Cases []CaseDetail `json:"cases" validate:"required"`
	Total int          `json:"total" example:"42" validate:"required"`
}

// MovementsResponse is a case's movement feed.
type MovementsResponse struct {
	CaseID    string              `json:"case_id" validate:"required"`
	Movements []movement.Movement `json:"movements" validate:"required"`
	Unread    int                 `json:"unread" example:"3"`
}

// MarkReadResponse reports how many movements changed state.
type MarkReadResponse struct {
	Marked int `json:"marked" example:"2"`
}

// ResolveResponse describes the tribunal behind a case number.
type ResolveResponse struct {
	Numero    string         `json:"numero" example:"00012345620248260100"`
	Formatted string         `json:"formatted" example:"0001234-56.2024.8.26.0100"`
	Valid     bool           `json:"valid"`
	Tribunal  cnj.Descriptor `json:"tribunal"`
}

// TribunalListResponse lists the tribunal table.
type TribunalListResponse struct {
	Tribunals []cnj.Descriptor `json:"tribunals" validate:"required"`
}

// SearchResponse wraps movement search results.
type SearchResponse struct {
	Results []movement.Movement `json:"results" validate:"required"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
