package driven

import (
	"context"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// MergeDrafter authors merged content from two documents. The call is
// side-effect-free: nothing is persisted until the orchestrator applies the
// draft, so a failed or cancelled draft is always safe to retry.
type MergeDrafter interface {
	// DraftMerge combines both documents' content into a single draft that
	// preserves the important information from each.
	DraftMerge(ctx context.Context, a, b *domain.DocumentSnapshot) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the drafting service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the drafting service
	Close() error
}
