package store

import (
	"context"
	"fmt"

	"order-status-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ListTransitions retrieves the edges leaving any of the given states that apply to a role.
// Edges without a role apply to every role.
func (s *Store) ListTransitions(ctx context.Context, roleID int64, fromStates []int64) ([]models.StatusTransition, error) {
	if len(fromStates) == 0 {
		return []models.StatusTransition{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT t.id, t.from_state_id, t.to_state_id, t.role_id,
		       s.name AS to_state_name, s.code AS to_state_code
		FROM status_transitions t
		JOIN order_statuses s ON s.id = t.to_state_id
		WHERE t.from_state_id IN (?) AND (t.role_id = ? OR t.role_id IS NULL)
		ORDER BY t.from_state_id, s.id, t.id`, fromStates, roleID)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var transitions []models.StatusTransition
	if err := s.db.SelectContext(ctx, &transitions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	return transitions, nil
}

// CreateTransition registers an edge of the transition graph
func (s *Store) CreateTransition(ctx context.Context, transition *models.StatusTransition) error {
	query := `
		INSERT INTO status_transitions (from_state_id, to_state_id, role_id)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := s.db.GetContext(ctx, &transition.ID, query,
		transition.FromStateID, transition.ToStateID, transition.RoleID)
	if isUniqueViolation(err) {
		return ErrTransitionExists
	}
	if err != nil {
		return fmt.Errorf("failed to create transition: %w", err)
	}
	return nil
}
