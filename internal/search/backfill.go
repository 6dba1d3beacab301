package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/repository"
)

// BusinessLister pages through stored businesses.
type BusinessLister interface {
	List(ctx context.Context, filter repository.BusinessFilter) ([]domain.Business, int, error)
}

const backfillBatch = 100

// Backfill copies every stored business into index, one bulk request per
// page, and returns the number of documents written. Upserts are
// idempotent, so running it against a populated index is safe.
func Backfill(ctx context.Context, businesses BusinessLister, index Index, logger *slog.Logger) (int, error) {
	written := 0
	for page := 1; ; page++ {
		batch, total, err := businesses.List(ctx, repository.BusinessFilter{Page: page, PerPage: backfillBatch})
		if err != nil {
			return written, fmt.Errorf("list businesses page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}

		docs := make([]Document, 0, len(batch))
		for i := range batch {
			docs = append(docs, FromBusiness(&batch[i]))
		}
		if err := index.UpsertMany(ctx, docs); err != nil {
			return written, fmt.Errorf("index businesses page %d: %w", page, err)
		}
		written += len(docs)

		if written >= total {
			break
		}
	}

	logger.InfoContext(ctx, "search index backfilled", slog.Int("businesses", written))
	return written, nil
}
