package catalog

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"

	"review-rush-go/internal/game"
	"review-rush-go/internal/game/modes"
)

type remote interface {
	FetchBatch(ctx context.Context, endpoint string, limit int, excluded []int64) ([]GameDTO, error)
	FetchAll(ctx context.Context) ([]GameDTO, error)
}

type randFunc func(int) int

func (f randFunc) IntN(n int) int { return f(n) }

// Repository serves batches from the backend and falls back to the full
// catalog (memory, then a fresh download, then the snapshot) when a batch
// call fails.
type Repository struct {
	remote    remote
	snapshot  Snapshot
	imageBase string
	rng       game.RNG
	logger    *slog.Logger

	mu    sync.Mutex
	cache []game.Item
}

type RepositoryOption func(*Repository)

func WithImageBase(base string) RepositoryOption {
	return func(r *Repository) { r.imageBase = base }
}

func WithRandom(rng game.RNG) RepositoryOption {
	return func(r *Repository) { r.rng = rng }
}

func WithLogger(l *slog.Logger) RepositoryOption {
	return func(r *Repository) { r.logger = l }
}

func NewRepository(client remote, snapshot Snapshot, opts ...RepositoryOption) *Repository {
	r := &Repository{
		remote:   client,
		snapshot: snapshot,
		rng:      randFunc(rand.IntN),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "catalog")
	return r
}

// FetchBatch implements game.Catalog.
func (r *Repository) FetchBatch(ctx context.Context, limit int, mode modes.GameMode, excluded []int64) ([]game.Item, error) {
	rules := modes.DefaultSettings(mode)
	endpoint := rules.Endpoint
	if endpoint == "" {
		endpoint = modes.EndpointNextBatch
	}

	dtos, err := r.remote.FetchBatch(ctx, endpoint, limit, excluded)
	if err == nil {
		items := r.filter(r.toItems(dtos), rules.ReviewPolarity, excluded)
		if len(items) > limit {
			items = items[:limit]
		}
		return items, nil
	}

	r.logger.Warn("batch fetch failed, using full catalog", "mode", mode, "endpoint", endpoint, "error", err)
	all, ok := r.fullCatalog(ctx)
	if !ok {
		return nil, asTransport("fetch batch", err)
	}

	items := r.filter(all, rules.ReviewPolarity, excluded)
	r.shuffle(items)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Refresh downloads the full catalog and persists it as the offline snapshot.
func (r *Repository) Refresh(ctx context.Context) (int, error) {
	dtos, err := r.remote.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := r.snapshot.Save(ctx, dtos); err != nil {
		return 0, err
	}
	r.setCache(r.toItems(dtos))
	return len(dtos), nil
}

func (r *Repository) fullCatalog(ctx context.Context) ([]game.Item, bool) {
	r.mu.Lock()
	cached := r.cache
	r.mu.Unlock()
	if cached != nil {
		return cached, true
	}

	dtos, err := r.remote.FetchAll(ctx)
	if err == nil {
		if err := r.snapshot.Save(ctx, dtos); err != nil {
			r.logger.Warn("failed to save catalog snapshot", "error", err)
		}
		items := r.toItems(dtos)
		r.setCache(items)
		return items, true
	}
	r.logger.Warn("full catalog fetch failed", "error", err)

	dtos, err = r.snapshot.Load(ctx)
	var corrupt *CorruptCacheError
	switch {
	case err == nil:
		r.logger.Info("serving catalog from snapshot", "games", len(dtos))
		items := r.toItems(dtos)
		r.setCache(items)
		return items, true
	case errors.As(err, &corrupt):
		r.logger.Warn("ignoring corrupt catalog snapshot", "source", corrupt.Source, "error", corrupt.Err)
	case !errors.Is(err, ErrNoSnapshot):
		r.logger.Warn("failed to load catalog snapshot", "error", err)
	}
	return nil, false
}

func (r *Repository) setCache(items []game.Item) {
	r.mu.Lock()
	r.cache = items
	r.mu.Unlock()
}

func (r *Repository) toItems(dtos []GameDTO) []game.Item {
	items := make([]game.Item, 0, len(dtos))
	for _, dto := range dtos {
		items = append(items, ToItem(dto, r.imageBase))
	}
	return items
}

// filter drops excluded items and items without a review of the wanted
// polarity. Returned items are copies whose reviews are narrowed to that
// polarity; for polarity-restricted modes they are also shuffled.
//
// Items with no reviews at all are dropped in every mode, including the
// ones that take any polarity: a round is prompted with a review, so such
// an item can never be played. The mobile app kept them in those modes.
// A remote batch can therefore come back with fewer than limit items.
func (r *Repository) filter(items []game.Item, polarity modes.Polarity, excluded []int64) []game.Item {
	skip := make(map[int64]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}

	out := make([]game.Item, 0, len(items))
	for _, it := range items {
		if _, ok := skip[it.ID]; ok {
			continue
		}
		reviews := make([]game.Review, 0, len(it.Reviews))
		for _, rv := range it.Reviews {
			if polarity.Matches(rv.IsPositive) {
				reviews = append(reviews, rv)
			}
		}
		if len(reviews) == 0 {
			continue
		}
		if polarity != modes.PolarityAny {
			for i := len(reviews) - 1; i > 0; i-- {
				j := r.rng.IntN(i + 1)
				reviews[i], reviews[j] = reviews[j], reviews[i]
			}
		}
		it.Reviews = reviews
		it.Genres = append([]string(nil), it.Genres...)
		out = append(out, it)
	}
	return out
}

func (r *Repository) shuffle(items []game.Item) {
	for i := len(items) - 1; i > 0; i-- {
		j := r.rng.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

func asTransport(op string, err error) error {
	var te *game.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &game.TransportError{Op: op, Err: err}
}
