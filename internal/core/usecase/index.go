package usecase

import (
	"context"
	"fmt"

	"github.com/vkuznetsov/usecase-rag/internal/core/ports"
)

// IndexMaintenanceUseCase exposes the explicit index maintenance operations:
// lexical rebuild and full index clear.
type IndexMaintenanceUseCase struct {
	vectorDB ports.VectorStore
	lexical  ports.LexicalIndex
}

func NewIndexMaintenanceUseCase(vectorDB ports.VectorStore, lexical ports.LexicalIndex) *IndexMaintenanceUseCase {
	return &IndexMaintenanceUseCase{vectorDB: vectorDB, lexical: lexical}
}

func (uc *IndexMaintenanceUseCase) RefreshLexical(ctx context.Context) error {
	if err := uc.lexical.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild lexical index: %w", err)
	}
	return nil
}

// ClearIndex drops every indexed chunk and swaps in an empty lexical
// snapshot.
func (uc *IndexMaintenanceUseCase) ClearIndex(ctx context.Context) error {
	if err := uc.vectorDB.Clear(ctx); err != nil {
		return fmt.Errorf("clear vector index: %w", err)
	}
	if err := uc.lexical.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild lexical index after clear: %w", err)
	}
	return nil
}
