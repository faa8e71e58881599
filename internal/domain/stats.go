package domain

// ChangeStats holds the per-entity-type, per-change-type counters of a
// merge request plus the aggregate conflict flag. It is always derived
// from the full change list, never maintained incrementally.
type ChangeStats struct {
	ConceptsAdded         int
	ConceptsModified      int
	ConceptsDeleted       int
	RelationshipsAdded    int
	RelationshipsModified int
	RelationshipsDeleted  int
	IndividualsAdded      int
	IndividualsModified   int
	IndividualsDeleted    int
	HasConflicts          bool
}

// TotalChanges returns the sum of all nine counters.
func (s ChangeStats) TotalChanges() int {
	return s.ConceptsAdded + s.ConceptsModified + s.ConceptsDeleted +
		s.RelationshipsAdded + s.RelationshipsModified + s.RelationshipsDeleted +
		s.IndividualsAdded + s.IndividualsModified + s.IndividualsDeleted
}

// ComputeChangeStats recomputes statistics from scratch over the given
// change list. Deterministic and linear in the number of changes.
func ComputeChangeStats(changes []*MergeRequestChange) ChangeStats {
	var stats ChangeStats
	for _, c := range changes {
		switch c.EntityType {
		case EntityConcept:
			switch c.ChangeType {
			case ChangeAdd:
				stats.ConceptsAdded++
			case ChangeModify:
				stats.ConceptsModified++
			case ChangeDelete:
				stats.ConceptsDeleted++
			}
		case EntityRelationship:
			switch c.ChangeType {
			case ChangeAdd:
				stats.RelationshipsAdded++
			case ChangeModify:
				stats.RelationshipsModified++
			case ChangeDelete:
				stats.RelationshipsDeleted++
			}
		case EntityIndividual:
			switch c.ChangeType {
			case ChangeAdd:
				stats.IndividualsAdded++
			case ChangeModify:
				stats.IndividualsModified++
			case ChangeDelete:
				stats.IndividualsDeleted++
			}
		}
		if c.HasConflict {
			stats.HasConflicts = true
		}
	}
	return stats
}
