package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/tuitionledger/internal/payment/domain"
)

type recordPaymentRequest struct {
	StudentID string `json:"student_id"`
	PaidOn    string `json:"paid_on"`
	Amount    int64  `json:"amount"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.RecordPayment(c.Request.Context(), paymentdomain.RecordPaymentRequest{
		StudentID: strings.TrimSpace(req.StudentID),
		PaidOn:    strings.TrimSpace(req.PaidOn),
		Amount:    req.Amount,
		Method:    strings.TrimSpace(req.Method),
		Reference: strings.TrimSpace(req.Reference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStudentPayments(c *gin.Context) {
	resp, err := s.paymentSvc.ListPayments(c.Request.Context(), paymentdomain.ListPaymentsRequest{
		StudentID: strings.TrimSpace(c.Param("id")),
		Period:    strings.TrimSpace(c.Query("period")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
