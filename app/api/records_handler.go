package api

import (
	"auticare/index"
	"auticare/types"

	"github.com/gofiber/fiber/v2"
)

const defaultRecordResults = 3

type RecordsHandler struct {
	index index.Index
}

func NewRecordsHandler(idx index.Index) *RecordsHandler {
	return &RecordsHandler{index: idx}
}

// HandleSearch runs a semantic search over the serialized patient records.
func (h *RecordsHandler) HandleSearch(c *fiber.Ctx) error {
	var params types.PatientSearchParams
	if c.QueryParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}
	if !index.IsAvailable(h.index) {
		return ErrUnavailable("record index")
	}
	k := params.K
	if k == 0 {
		k = defaultRecordResults
	}

	results, err := h.index.Search(c.UserContext(), params.Query, k)
	if err != nil {
		return err
	}
	if results == nil {
		results = []string{}
	}
	return c.JSON(types.PatientSearchResponse{Success: true, Query: params.Query, Results: results})
}
