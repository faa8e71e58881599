package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/google/uuid"
)

// DetectConflicts re-evaluates every change of a merge request against
// the ontology's live entity state and returns whether any change
// conflicts. It is idempotent: repeated runs only move the per-change
// flags and the derived aggregate, never the payloads.
func (s *MergeRequestService) DetectConflicts(ctx context.Context, id uuid.UUID) (bool, error) {
	mr, err := s.mrRepo.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get merge request: %w", err)
	}

	changes, err := s.changeRepo.ListByMergeRequest(ctx, mr.ID)
	if err != nil {
		return false, fmt.Errorf("list changes: %w", err)
	}

	if err := s.refreshConflicts(ctx, mr, changes); err != nil {
		return false, err
	}

	return mr.Stats.HasConflicts, nil
}

// refreshConflicts recomputes every change's conflict flag, persists
// the flags that moved, and rewrites the request's statistics so the
// aggregate flag matches the per-change flags.
func (s *MergeRequestService) refreshConflicts(ctx context.Context, mr *domain.MergeRequest, changes []*domain.MergeRequestChange) error {
	moved := make(map[uuid.UUID]bool)

	for _, change := range changes {
		conflicted, err := s.evaluateConflict(ctx, mr, change)
		if err != nil {
			return err
		}
		if conflicted != change.HasConflict {
			change.HasConflict = conflicted
			moved[change.ID] = conflicted
		}
	}

	if len(moved) > 0 {
		if err := s.changeRepo.SetConflictFlags(ctx, moved); err != nil {
			return fmt.Errorf("persist conflict flags: %w", err)
		}
	}

	mr.Stats = domain.ComputeChangeStats(changes)
	if err := s.mrRepo.UpdateStats(ctx, mr); err != nil {
		return fmt.Errorf("update stats: %w", err)
	}

	s.logger.Debug("conflict detection completed",
		"merge_request_id", mr.ID,
		"changes", len(changes),
		"flags_moved", len(moved),
		"has_conflicts", mr.Stats.HasConflicts,
	)

	return nil
}

// evaluateConflict decides whether one change can still be applied
// safely. An add conflicts when the entity appeared independently; a
// modify or delete conflicts when the entity is gone or its live state
// diverged from the base snapshot captured at proposal time.
func (s *MergeRequestService) evaluateConflict(ctx context.Context, mr *domain.MergeRequest, change *domain.MergeRequestChange) (bool, error) {
	live, found, err := s.entityRepo.GetLiveState(ctx, mr.OntologyID, change.EntityType, change.EntityID)
	if err != nil {
		return false, fmt.Errorf("read live state of %s %s: %w", change.EntityType, change.EntityID, err)
	}

	switch change.ChangeType {
	case domain.ChangeAdd:
		return found, nil
	default: // modify, delete
		if !found || change.BaseSnapshot == nil {
			return true, nil
		}
		return !jsonEqual(live.Payload, change.BaseSnapshot), nil
	}
}

// jsonEqual compares two JSON documents structurally so formatting and
// key order differences don't register as conflicts.
func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return bytes.Equal(a, b)
	}
	return reflect.DeepEqual(av, bv)
}
