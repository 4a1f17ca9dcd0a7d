package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/tuitionledger/internal/ledger/domain"
	reportdomain "github.com/smallbiznis/tuitionledger/internal/report/domain"
	"github.com/smallbiznis/tuitionledger/pkg/db/pagination"
)

func (s *Server) GetStudentBalance(c *gin.Context) {
	resp, err := s.ledgerSvc.GetBalance(c.Request.Context(), ledgerdomain.GetBalanceRequest{
		StudentID: strings.TrimSpace(c.Param("id")),
		Period:    strings.TrimSpace(c.Param("period")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecalculateStudentBalance(c *gin.Context) {
	resp, err := s.ledgerSvc.Recalculate(c.Request.Context(), ledgerdomain.RecalculateRequest{
		StudentID: strings.TrimSpace(c.Param("id")),
		Period:    strings.TrimSpace(c.Param("period")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RebuildStudentBalances(c *gin.Context) {
	resp, err := s.ledgerSvc.RecalculateForward(c.Request.Context(), ledgerdomain.RecalculateForwardRequest{
		StudentID: strings.TrimSpace(c.Param("id")),
		From:      strings.TrimSpace(c.Param("period")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBalances(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Period string `form:"period"`
		Filter string `form:"filter"`
		Cohort string `form:"cohort"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reportSvc.ListBalances(c.Request.Context(), reportdomain.ListBalancesRequest{
		Period:    strings.TrimSpace(query.Period),
		Filter:    strings.TrimSpace(query.Filter),
		Cohort:    strings.TrimSpace(query.Cohort),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
