package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/cache"
	"github.com/saiset-co/sai-social-bot/logger"
	"github.com/saiset-co/sai-social-bot/types"
)

type fakeFetcher struct {
	results map[string]*types.FetchResult
	errs    map[string]error
	fetched []string
	sinceBy map[string]string
}

func (f *fakeFetcher) Fetch(ctx context.Context, account types.Account, sinceID string) (*types.FetchResult, error) {
	f.fetched = append(f.fetched, account.Handle)

	if f.sinceBy == nil {
		f.sinceBy = make(map[string]string)
	}
	f.sinceBy[account.Handle] = sinceID

	if err, exists := f.errs[account.Handle]; exists {
		return nil, err
	}

	if result, exists := f.results[account.Handle]; exists {
		return result, nil
	}

	return &types.FetchResult{Freshness: types.FreshnessLive}, nil
}

type stubGenerator struct{}

func (stubGenerator) GenerateReply(ctx context.Context, sourceText string) string {
	return "re: " + sourceText
}

func (stubGenerator) GenerateOriginal(ctx context.Context) string {
	return "original"
}

type fakePublisher struct {
	replies  []string
	failFrom int
}

func (f *fakePublisher) PublishReply(ctx context.Context, postID, text string) bool {
	f.replies = append(f.replies, postID)
	return f.failFrom == 0 || len(f.replies) < f.failFrom
}

func (f *fakePublisher) PublishOriginal(ctx context.Context, text string) bool {
	return true
}

type memStore struct {
	checkpoints map[string]string
	cursor      int
	cursorSaves []int
	saveErr     error
}

func newMemStore() *memStore {
	return &memStore{checkpoints: make(map[string]string)}
}

func (m *memStore) LoadCheckpoints() (map[string]string, error) {
	copied := make(map[string]string, len(m.checkpoints))
	for handle, id := range m.checkpoints {
		copied[handle] = id
	}
	return copied, nil
}

func (m *memStore) SaveCheckpoints(checkpoints map[string]string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.checkpoints = checkpoints
	return nil
}

func (m *memStore) LoadCursor() (int, error) {
	return m.cursor, nil
}

func (m *memStore) SaveCursor(index int) error {
	m.cursor = index
	m.cursorSaves = append(m.cursorSaves, index)
	return nil
}

func testAccounts() []types.Account {
	return []types.Account{
		{Handle: "alpha", UserID: "u1"},
		{Handle: "beta", UserID: "u2"},
		{Handle: "gamma", UserID: "u3"},
	}
}

func newTestCycle(t *testing.T, fetcher types.ContentFetcher, pub types.Publisher, store types.CheckpointStore, accounts []types.Account) *ReplyCycle {
	t.Helper()

	log := logger.NewZapWrapper(zap.NewNop())

	cacheManager, err := cache.NewMemoryCache(context.Background(), log, &types.CacheConfig{
		DefaultTTL: time.Hour,
	})
	require.NoError(t, err)

	cycle := NewReplyCycle(log, fetcher, stubGenerator{}, pub, store, cacheManager, &types.BotConfig{
		Accounts: accounts,
	})

	cycle.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	return cycle
}

func livePosts(ids ...string) *types.FetchResult {
	posts := make([]types.Post, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, types.Post{ID: id, Text: "post " + id})
	}
	return &types.FetchResult{Posts: posts, Freshness: types.FreshnessLive}
}

func TestCycleVisitsAccountsInRotatedOrder(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newMemStore()
	store.cursor = 1

	cycle := newTestCycle(t, fetcher, &fakePublisher{}, store, testAccounts())
	cycle.Run(context.Background())

	require.Equal(t, []string{"beta", "gamma", "alpha"}, fetcher.fetched)
	require.Equal(t, 1, store.cursor)
}

func TestCycleRepliesOldestFirstAndAdvancesCheckpoint(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]*types.FetchResult{
		"alpha": livePosts("105", "104", "103"),
	}}
	pub := &fakePublisher{}
	store := newMemStore()

	cycle := newTestCycle(t, fetcher, pub, store, testAccounts())
	cycle.Run(context.Background())

	require.Equal(t, []string{"103", "104", "105"}, pub.replies)
	require.Equal(t, "105", store.checkpoints["alpha"])
}

func TestCycleUsesCheckpointAsSinceID(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newMemStore()
	store.checkpoints["beta"] = "42"

	cycle := newTestCycle(t, fetcher, &fakePublisher{}, store, testAccounts())
	cycle.Run(context.Background())

	require.Equal(t, "42", fetcher.sinceBy["beta"])
	require.Equal(t, "", fetcher.sinceBy["alpha"])
}

func TestCycleRateLimitHaltsWithoutAdvancingCursor(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		"beta": &types.APIError{StatusCode: 429},
	}}
	store := newMemStore()

	cycle := newTestCycle(t, fetcher, &fakePublisher{}, store, testAccounts())
	cycle.Run(context.Background())

	require.Equal(t, []string{"alpha", "beta"}, fetcher.fetched)
	require.Equal(t, 1, store.cursor)
}

func TestCycleResumesAtRateLimitedAccount(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		"beta": &types.APIError{StatusCode: 429},
	}}
	store := newMemStore()

	cycle := newTestCycle(t, fetcher, &fakePublisher{}, store, testAccounts())
	cycle.Run(context.Background())

	fetcher.errs = nil
	fetcher.fetched = nil
	cycle.Run(context.Background())

	require.Equal(t, []string{"beta", "gamma", "alpha"}, fetcher.fetched)
}

func TestCycleCheckpointAdvancesDespiteReplyFailures(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]*types.FetchResult{
		"alpha": livePosts("105", "104", "103"),
	}}
	pub := &fakePublisher{failFrom: 1}
	store := newMemStore()

	cycle := newTestCycle(t, fetcher, pub, store, testAccounts())
	cycle.Run(context.Background())

	require.Equal(t, "105", store.checkpoints["alpha"])
	require.Len(t, pub.replies, 1)
	require.Equal(t, 0, store.cursor)
}

func TestCycleGenericFetchErrorAdvancesCursor(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		"alpha": errors.New("boom"),
	}}
	store := newMemStore()

	cycle := newTestCycle(t, fetcher, &fakePublisher{}, store, testAccounts())
	cycle.Run(context.Background())

	require.Equal(t, []string{"alpha", "beta", "gamma"}, fetcher.fetched)
	require.Equal(t, 0, store.cursor)
}

func TestCycleSkipsUnmappedAccount(t *testing.T) {
	accounts := []types.Account{
		{Handle: "alpha", UserID: "u1"},
		{Handle: "nomap"},
		{Handle: "gamma", UserID: "u3"},
	}

	fetcher := &fakeFetcher{}
	store := newMemStore()

	cycle := newTestCycle(t, fetcher, &fakePublisher{}, store, accounts)
	cycle.Run(context.Background())

	require.Equal(t, []string{"alpha", "gamma"}, fetcher.fetched)
	require.Equal(t, 0, store.cursor)
}

func TestCycleStaleCursorResetsToZero(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newMemStore()
	store.cursor = 7

	cycle := newTestCycle(t, fetcher, &fakePublisher{}, store, testAccounts())
	cycle.Run(context.Background())

	require.Equal(t, []string{"alpha", "beta", "gamma"}, fetcher.fetched)
}

func TestCycleCheckpointMonotonicAcrossCycles(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{failFrom: 1}

	batches := []*types.FetchResult{
		livePosts("103"),
		livePosts("106", "105"),
		livePosts("109"),
	}

	for _, batch := range batches {
		fetcher := &fakeFetcher{results: map[string]*types.FetchResult{"alpha": batch}}
		cycle := newTestCycle(t, fetcher, pub, store, testAccounts())
		cycle.Run(context.Background())
	}

	require.Equal(t, "109", store.checkpoints["alpha"])
}
