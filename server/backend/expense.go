package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hearthbook/go-ledger-api"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var ErrNoExpense = errors.New("no such expense")

type expense struct {
	expenseID   string
	date        time.Time
	place       string
	description string
	category    ledger.Category
	method      ledger.PaymentMethod
	amountCents int64
	createTime  time.Time
}

func (exp *expense) toExpense() ledger.Expense {
	return ledger.Expense{
		ID:            exp.expenseID,
		Date:          exp.date.Format(time.DateOnly),
		Place:         exp.place,
		Description:   exp.description,
		Category:      exp.category,
		PaymentMethod: exp.method,
		AmountCents:   exp.amountCents,
	}
}

func (b *Backend) CreateExpense(req ledger.CreateExpenseReq) (ledger.Expense, error) {
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return ledger.Expense{}, fmt.Errorf("invalid date %q: %w", req.Date, err)
	}

	if !slices.Contains(ledger.Categories, req.Category) {
		return ledger.Expense{}, fmt.Errorf("invalid category %q", req.Category)
	}

	if !slices.Contains(ledger.PaymentMethods, req.PaymentMethod) {
		return ledger.Expense{}, fmt.Errorf("invalid payment method %q", req.PaymentMethod)
	}

	if req.AmountCents <= 0 {
		return ledger.Expense{}, fmt.Errorf("amount must be positive")
	}

	exp := &expense{
		expenseID:   uuid.NewString(),
		date:        date,
		place:       req.Place,
		description: req.Description,
		category:    req.Category,
		method:      req.PaymentMethod,
		amountCents: req.AmountCents,
		createTime:  time.Now(),
	}

	b.expensesLock.Lock()
	defer b.expensesLock.Unlock()

	b.expenses[exp.expenseID] = exp

	return exp.toExpense(), nil
}

// GetExpenses returns every expense, newest date first.
func (b *Backend) GetExpenses() []ledger.Expense {
	b.expensesLock.RLock()
	defer b.expensesLock.RUnlock()

	exps := maps.Values(b.expenses)

	slices.SortFunc(exps, func(a, b *expense) bool {
		if !a.date.Equal(b.date) {
			return a.date.After(b.date)
		}

		return a.createTime.After(b.createTime)
	})

	res := make([]ledger.Expense, 0, len(exps))

	for _, exp := range exps {
		res = append(res, exp.toExpense())
	}

	return res
}

func (b *Backend) DeleteExpense(expenseID string) error {
	b.expensesLock.Lock()
	defer b.expensesLock.Unlock()

	if _, ok := b.expenses[expenseID]; !ok {
		return ErrNoExpense
	}

	delete(b.expenses, expenseID)

	return nil
}
