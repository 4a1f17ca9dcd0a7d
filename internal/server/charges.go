package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/tuitionledger/internal/invoice/domain"
)

type generateChargesRequest struct {
	Period string `json:"period"`
	// Students is either the string "all" or a list of student ids.
	Students     json.RawMessage `json:"students"`
	SkipExisting bool            `json:"skip_existing"`
}

func (s *Server) GenerateCharges(c *gin.Context) {
	var req generateChargesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	all, ids, err := parseStudentSelector(req.Students)
	if err != nil {
		AbortWithError(c, newValidationError("students", "invalid_student_selector", err.Error()))
		return
	}

	resp, err := s.invoiceSvc.GenerateCharges(c.Request.Context(), invoicedomain.GenerateChargesRequest{
		Period:       strings.TrimSpace(req.Period),
		All:          all,
		StudentIDs:   ids,
		SkipExisting: req.SkipExisting,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStudentCharges(c *gin.Context) {
	var query struct {
		Period string `form:"period"`
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.ListCharges(c.Request.Context(), invoicedomain.ListChargesRequest{
		StudentID: strings.TrimSpace(c.Param("id")),
		Period:    strings.TrimSpace(query.Period),
		Status:    strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// parseStudentSelector accepts "all" or a JSON array of ids given as strings
// or integers.
func parseStudentSelector(raw json.RawMessage) (bool, []string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil, fmt.Errorf("students is required")
	}

	var keyword string
	if err := json.Unmarshal(raw, &keyword); err == nil {
		if strings.EqualFold(strings.TrimSpace(keyword), "all") {
			return true, nil, nil
		}
		return false, nil, fmt.Errorf("students must be \"all\" or a list of ids")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var values []any
	if err := dec.Decode(&values); err != nil {
		return false, nil, fmt.Errorf("students must be \"all\" or a list of ids")
	}
	if len(values) == 0 {
		return false, nil, fmt.Errorf("students list is empty")
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		switch id := v.(type) {
		case string:
			ids = append(ids, strings.TrimSpace(id))
		case json.Number:
			ids = append(ids, id.String())
		default:
			return false, nil, fmt.Errorf("students must be \"all\" or a list of ids")
		}
	}
	return false, ids, nil
}
