package service

import (
	"context"
	"database/sql"
	"fmt"

	"order-status-service/internal/models"
	"order-status-service/internal/util"

	"go.uber.org/zap"
)

// TransitionStore persists the edges of the transition graph
type TransitionStore interface {
	ListTransitions(ctx context.Context, roleID int64, fromStates []int64) ([]models.StatusTransition, error)
	CreateTransition(ctx context.Context, transition *models.StatusTransition) error
}

// TransitionGraph answers which statuses a role may move an order to
type TransitionGraph struct {
	store  TransitionStore
	logger *zap.Logger
}

// NewTransitionGraph creates a new transition graph
func NewTransitionGraph(store TransitionStore) *TransitionGraph {
	return &TransitionGraph{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ListAvailableTransitions returns the edges leaving a status that apply to the role
func (g *TransitionGraph) ListAvailableTransitions(ctx context.Context, roleID, fromState int64) ([]models.StatusTransition, error) {
	return g.store.ListTransitions(ctx, roleID, []int64{fromState})
}

// ListAvailableTransitionsMulti returns the destinations reachable from every
// one of the given statuses, one edge per destination taken from the first
// status. The result is empty when any status has no edge for the role.
func (g *TransitionGraph) ListAvailableTransitionsMulti(ctx context.Context, roleID int64, fromStates []int64) ([]models.StatusTransition, error) {
	if len(fromStates) == 0 {
		return []models.StatusTransition{}, nil
	}

	edges, err := g.store.ListTransitions(ctx, roleID, fromStates)
	if err != nil {
		return nil, err
	}
	return intersectTransitions(fromStates, edges), nil
}

// CanTransition reports whether the role has an edge between the two statuses
func (g *TransitionGraph) CanTransition(ctx context.Context, roleID, from, to int64) (bool, error) {
	edges, err := g.ListAvailableTransitions(ctx, roleID, from)
	if err != nil {
		return false, err
	}

	for _, edge := range edges {
		if edge.ToStateID == to {
			return true, nil
		}
	}
	return false, nil
}

// AddTransition registers an edge. A zero role applies the edge to every role.
func (g *TransitionGraph) AddTransition(ctx context.Context, from, to, roleID int64) (*models.StatusTransition, error) {
	if from == to {
		return nil, ErrSelfTransition
	}

	transition := &models.StatusTransition{
		FromStateID: from,
		ToStateID:   to,
		RoleID:      sql.NullInt64{Int64: roleID, Valid: roleID != 0},
	}
	if err := g.store.CreateTransition(ctx, transition); err != nil {
		return nil, fmt.Errorf("failed to add transition %d->%d: %w", from, to, err)
	}

	g.logger.Info("Status transition added",
		zap.Int64("from_state_id", from),
		zap.Int64("to_state_id", to),
		zap.Int64("role_id", roleID))
	return transition, nil
}

func intersectTransitions(fromStates []int64, edges []models.StatusTransition) []models.StatusTransition {
	reachable := make(map[int64]map[int64]bool, len(fromStates))
	for _, edge := range edges {
		if reachable[edge.FromStateID] == nil {
			reachable[edge.FromStateID] = make(map[int64]bool)
		}
		reachable[edge.FromStateID][edge.ToStateID] = true
	}

	for _, state := range fromStates {
		if len(reachable[state]) == 0 {
			return []models.StatusTransition{}
		}
	}

	first := fromStates[0]
	seen := make(map[int64]bool)
	result := []models.StatusTransition{}
	for _, edge := range edges {
		if edge.FromStateID != first || seen[edge.ToStateID] {
			continue
		}
		seen[edge.ToStateID] = true

		common := true
		for _, state := range fromStates[1:] {
			if !reachable[state][edge.ToStateID] {
				common = false
				break
			}
		}
		if common {
			result = append(result, edge)
		}
	}
	return result
}
