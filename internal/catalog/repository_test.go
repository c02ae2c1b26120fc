package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"review-rush-go/internal/game"
	"review-rush-go/internal/game/modes"
)

var _ game.Catalog = (*Repository)(nil)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) FetchBatch(ctx context.Context, endpoint string, limit int, excluded []int64) ([]GameDTO, error) {
	args := m.Called(ctx, endpoint, limit, excluded)
	games, _ := args.Get(0).([]GameDTO)
	return games, args.Error(1)
}

func (m *mockRemote) FetchAll(ctx context.Context) ([]GameDTO, error) {
	args := m.Called(ctx)
	games, _ := args.Get(0).([]GameDTO)
	return games, args.Error(1)
}

type memorySnapshot struct {
	games   []GameDTO
	loadErr error
	saveErr error
	saves   int
}

func (s *memorySnapshot) Load(ctx context.Context) ([]GameDTO, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.games == nil {
		return nil, ErrNoSnapshot
	}
	return s.games, nil
}

func (s *memorySnapshot) Save(ctx context.Context, games []GameDTO) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.games = games
	return nil
}

var errOffline = &game.TransportError{Op: "fetch batch", Err: errors.New("connection refused")}

func mixedCatalog() []GameDTO {
	return []GameDTO{
		{ID: 1, Name: "Hades", Reviews: []ReviewDTO{{Text: "superb", Positive: true}, {Text: "grindy", Positive: false}}},
		{ID: 2, Name: "Anthem", Reviews: []ReviewDTO{{Text: "hollow", Positive: false}}},
		{ID: 3, Name: "Celeste", Reviews: []ReviewDTO{{Text: "moving", Positive: true}}},
		{ID: 4, Name: "Empty", Reviews: nil},
	}
}

func newRepo(remote *mockRemote, snap Snapshot) *Repository {
	return NewRepository(remote, snap,
		WithRandom(randFunc(func(n int) int { return 0 })),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func ids(items []game.Item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestRepositoryUsesModeEndpoint(t *testing.T) {
	tests := []struct {
		mode     modes.GameMode
		endpoint string
	}{
		{modes.ModeHardcore, modes.EndpointNextBatch},
		{modes.ModeFree, modes.EndpointNextBatch},
		{modes.ModeGenre, modes.EndpointNextBatch},
		{modes.ModeSurvival, modes.EndpointNextBatch},
		{modes.ModeBadReviews, modes.EndpointBadReviewsBatch},
		{modes.ModeGoodReviews, modes.EndpointGoodReviewsBatch},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			remote := new(mockRemote)
			remote.On("FetchBatch", mock.Anything, tt.endpoint, 20, []int64{5}).Return(mixedCatalog()[:1], nil)

			items, err := newRepo(remote, &memorySnapshot{}).FetchBatch(context.Background(), 20, tt.mode, []int64{5})
			require.NoError(t, err)
			assert.Equal(t, []int64{1}, ids(items))
			remote.AssertExpectations(t)
		})
	}
}

func TestRepositoryFiltersRemoteBatchByPolarity(t *testing.T) {
	remote := new(mockRemote)
	remote.On("FetchBatch", mock.Anything, modes.EndpointBadReviewsBatch, 20, mock.Anything).Return(mixedCatalog(), nil)

	items, err := newRepo(remote, &memorySnapshot{}).FetchBatch(context.Background(), 20, modes.ModeBadReviews, nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, ids(items))
	for _, it := range items {
		for _, rv := range it.Reviews {
			assert.False(t, rv.IsPositive, "item %d", it.ID)
		}
	}
}

func TestRepositoryDropsItemsWithoutReviews(t *testing.T) {
	for _, mode := range []modes.GameMode{modes.ModeHardcore, modes.ModeFree, modes.ModeGenre, modes.ModeSurvival} {
		t.Run(string(mode), func(t *testing.T) {
			remote := new(mockRemote)
			remote.On("FetchBatch", mock.Anything, modes.EndpointNextBatch, 20, mock.Anything).Return(mixedCatalog(), nil)

			items, err := newRepo(remote, &memorySnapshot{}).FetchBatch(context.Background(), 20, mode, nil)
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 2, 3}, ids(items))
			assert.Len(t, items[0].Reviews, 2, "any polarity keeps every review")
		})
	}
}

func TestRepositoryFallsBackToFullCatalog(t *testing.T) {
	remote := new(mockRemote)
	remote.On("FetchBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errOffline)
	remote.On("FetchAll", mock.Anything).Return(mixedCatalog(), nil).Once()
	snap := &memorySnapshot{}
	repo := newRepo(remote, snap)

	items, err := repo.FetchBatch(context.Background(), 2, modes.ModeHardcore, []int64{1})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.NotContains(t, ids(items), int64(1))
	assert.NotContains(t, ids(items), int64(4), "items without reviews are unusable")
	assert.Equal(t, 1, snap.saves)
	assert.Equal(t, mixedCatalog(), snap.games)

	// Second call is served from memory.
	items, err = repo.FetchBatch(context.Background(), 20, modes.ModeGoodReviews, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 3}, ids(items))
	for _, it := range items {
		require.Len(t, it.Reviews, 1)
		assert.True(t, it.Reviews[0].IsPositive)
	}
	remote.AssertNumberOfCalls(t, "FetchAll", 1)
}

func TestRepositoryFallsBackToSnapshot(t *testing.T) {
	remote := new(mockRemote)
	remote.On("FetchBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errOffline)
	remote.On("FetchAll", mock.Anything).Return(nil, errOffline)
	snap := &memorySnapshot{games: mixedCatalog()}

	items, err := newRepo(remote, snap).FetchBatch(context.Background(), 20, modes.ModeBadReviews, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(items))
	assert.Equal(t, []game.Review{{Text: "grindy", IsPositive: false}}, items[0].Reviews)
	assert.Zero(t, snap.saves)
}

func TestRepositorySnapshotSaveFailureIsNotFatal(t *testing.T) {
	remote := new(mockRemote)
	remote.On("FetchBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errOffline)
	remote.On("FetchAll", mock.Anything).Return(mixedCatalog(), nil)
	snap := &memorySnapshot{saveErr: errors.New("disk full")}

	items, err := newRepo(remote, snap).FetchBatch(context.Background(), 20, modes.ModeFree, nil)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestRepositoryNothingAvailable(t *testing.T) {
	tests := []struct {
		name string
		snap *memorySnapshot
	}{
		{"no snapshot", &memorySnapshot{}},
		{"corrupt snapshot", &memorySnapshot{loadErr: &CorruptCacheError{Source: "games.json", Err: io.ErrUnexpectedEOF}}},
		{"unreadable snapshot", &memorySnapshot{loadErr: errors.New("permission denied")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := new(mockRemote)
			remote.On("FetchBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errOffline)
			remote.On("FetchAll", mock.Anything).Return(nil, errOffline)

			_, err := newRepo(remote, tt.snap).FetchBatch(context.Background(), 20, modes.ModeHardcore, nil)
			require.Error(t, err)
			assert.True(t, game.IsTransport(err))
		})
	}
}

func TestRepositoryRefresh(t *testing.T) {
	remote := new(mockRemote)
	remote.On("FetchAll", mock.Anything).Return(mixedCatalog(), nil).Once()
	remote.On("FetchBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errOffline)
	snap := &memorySnapshot{}
	repo := newRepo(remote, snap)

	n, err := repo.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, mixedCatalog(), snap.games)

	// The refreshed catalog is kept in memory for fallback.
	items, err := repo.FetchBatch(context.Background(), 20, modes.ModeHardcore, nil)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	remote.AssertNumberOfCalls(t, "FetchAll", 1)
}

func TestRepositoryRefreshFailure(t *testing.T) {
	remote := new(mockRemote)
	remote.On("FetchAll", mock.Anything).Return(nil, errOffline)

	_, err := newRepo(remote, &memorySnapshot{}).Refresh(context.Background())
	assert.ErrorIs(t, err, errOffline)
}
