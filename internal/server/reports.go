package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) GetDashboard(c *gin.Context) {
	resp, err := s.reportSvc.GetDashboard(c.Request.Context(), strings.TrimSpace(c.Query("period")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetItemSalesReport(c *gin.Context) {
	resp, err := s.reportSvc.GetItemSalesReport(c.Request.Context(), strings.TrimSpace(c.Query("period")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ExportItemSales(c *gin.Context) {
	p := strings.TrimSpace(c.Query("period"))
	data, err := s.reportSvc.ExportItemSales(c.Request.Context(), p)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="item-sales-%s.xlsx"`, p))
	c.Data(http.StatusOK, xlsxContentType, data)
}
