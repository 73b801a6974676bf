package lifecycle

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
)

// MaxLineageDepth bounds a lineage walk.
const MaxLineageDepth = 256

// ErrLineageCycle is returned when source links loop back on themselves.
var ErrLineageCycle = errors.New("card lineage contains a cycle")

// CardLookup loads a card by id.
type CardLookup func(ctx context.Context, id uuid.UUID) (*domain.Card, error)

// ResolveLineage follows SourceCardID from start back to the card with no
// source. The result is ordered from start to the root. A source that can no
// longer be loaded ends the walk with the chain found so far and the error.
func ResolveLineage(ctx context.Context, start *domain.Card, lookup CardLookup) ([]*domain.Card, error) {
	chain := []*domain.Card{start}
	seen := map[uuid.UUID]struct{}{start.ID: {}}

	current := start
	for current.SourceCardID != nil {
		if len(chain) >= MaxLineageDepth {
			return chain, ErrLineageCycle
		}
		next := *current.SourceCardID
		if _, ok := seen[next]; ok {
			return chain, ErrLineageCycle
		}

		card, err := lookup(ctx, next)
		if err != nil {
			return chain, err
		}
		seen[next] = struct{}{}
		chain = append(chain, card)
		current = card
	}

	return chain, nil
}
