package server

import (
	"errors"
	"net/http"

	"github.com/bradenaw/juniper/xslices"
	"github.com/gin-gonic/gin"
	"github.com/hearthbook/go-ledger-api"
	"github.com/hearthbook/go-ledger-api/server/backend"
)

func (s *Server) handleGetExpenses() gin.HandlerFunc {
	return func(c *gin.Context) {
		expenses := s.b.GetExpenses()

		if category := c.Query("type"); category != "" {
			expenses = xslices.Filter(expenses, func(exp ledger.Expense) bool {
				return exp.Category == ledger.Category(category)
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"expenses": expenses,
		})
	}
}

func (s *Server) handlePostExpenses() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.CreateExpenseReq

		if err := c.BindJSON(&req); err != nil {
			return
		}

		expense, err := s.b.CreateExpense(req)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ledger.Error{
				Code:    ledger.InvalidValue,
				Message: err.Error(),
			})

			return
		}

		c.JSON(http.StatusOK, gin.H{
			"expense": expense,
		})
	}
}

func (s *Server) handleDeleteExpense() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.b.DeleteExpense(c.Param("expenseID")); err != nil {
			status := http.StatusBadRequest

			if errors.Is(err, backend.ErrNoExpense) {
				status = http.StatusNotFound
			}

			c.AbortWithStatusJSON(status, ledger.Error{
				Code:    backend.ErrorCode(err),
				Message: err.Error(),
			})

			return
		}

		c.JSON(http.StatusOK, gin.H{})
	}
}
