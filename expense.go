package ledger

import (
	"context"

	"github.com/go-resty/resty/v2"
)

func (m *Manager) GetExpenses(ctx context.Context) ([]Expense, error) {
	var res struct {
		Expenses []Expense `json:"expenses"`
	}

	if err := m.do(ctx, "get expenses", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&res).Get("/api/expenses")
	}); err != nil {
		return nil, err
	}

	return res.Expenses, nil
}

func (m *Manager) CreateExpense(ctx context.Context, req CreateExpenseReq) (Expense, error) {
	var res struct {
		Expense Expense `json:"expense"`
	}

	if err := m.do(ctx, "create expense", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(req).SetResult(&res).Post("/api/expenses")
	}); err != nil {
		return Expense{}, err
	}

	return res.Expense, nil
}

func (m *Manager) DeleteExpense(ctx context.Context, expenseID string) error {
	return m.do(ctx, "delete expense", func(r *resty.Request) (*resty.Response, error) {
		return r.Delete("/api/expenses/" + expenseID)
	})
}
