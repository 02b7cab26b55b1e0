// Package rules evaluates order status entry requirements written in the
// Common Expression Language.
//
// An expression sees two variables:
//
//	order:  id, total_amount, status_id, paid, stock_updated, locked, items_count, customer_email
//	status: id, code
//
// For example `order.paid && order.items_count > 0`.
package rules

import (
	"fmt"
	"sync"

	"order-status-service/internal/models"

	"github.com/google/cel-go/cel"
)

// Facts is what a requirement is evaluated against
type Facts struct {
	Order      *models.Order
	ItemsCount int
}

// Evaluator compiles requirement expressions once and caches the programs
type Evaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewEvaluator creates an evaluator with the order and status variables declared
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("order", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("status", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}

	return &Evaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile checks an expression and caches its program
func (e *Evaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

// Satisfied reports whether the facts meet the status entry requirement.
// A status without a requirement is always satisfied. Expressions that fail to
// evaluate or do not yield a boolean are reported as errors.
func (e *Evaluator) Satisfied(status *models.OrderStatus, facts Facts) (bool, error) {
	if status.EntryRequirement == "" {
		return true, nil
	}

	prg, err := e.program(status.EntryRequirement)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"order":  orderVars(facts),
		"status": map[string]interface{}{"id": status.ID, "code": status.Code},
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate requirement of status %s: %w", status.Code, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("requirement of status %s is not a boolean expression", status.Code)
	}
	return result, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid requirement %q: %w", expr, iss.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build requirement %q: %w", expr, err)
	}

	e.mu.Lock()
	e.programs[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

func orderVars(facts Facts) map[string]interface{} {
	o := facts.Order
	return map[string]interface{}{
		"id":             o.ID,
		"total_amount":   o.TotalAmount,
		"status_id":      o.StatusID,
		"paid":           o.PaymentProcessed.Valid,
		"stock_updated":  o.StockUpdated,
		"locked":         o.Locked,
		"items_count":    int64(facts.ItemsCount),
		"customer_email": o.CustomerEmail,
	}
}
