package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/chargegazer/internal/analytics"
	"github.com/langchou/chargegazer/internal/models"
	"github.com/langchou/chargegazer/pkg/ws"
)

type recordingNotifier struct {
	mu     sync.Mutex
	loaded map[string][]ws.DatasetLoaded
	resets map[string]int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		loaded: make(map[string][]ws.DatasetLoaded),
		resets: make(map[string]int),
	}
}

func (n *recordingNotifier) BroadcastDatasetLoaded(id string, loaded ws.DatasetLoaded) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loaded[id] = append(n.loaded[id], loaded)
}

func (n *recordingNotifier) BroadcastDatasetReset(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets[id]++
}

var errStoreDown = errors.New("store down")

// failingStore 写入总是失败
type failingStore struct{}

func (failingStore) SaveSessions(ctx context.Context, sessions []models.FleetSession) (int, error) {
	return 0, errStoreDown
}

func (failingStore) ListSessions(ctx context.Context, model string) ([]models.FleetSession, error) {
	return nil, errStoreDown
}

func (failingStore) AvailableModels(ctx context.Context) ([]string, error) {
	return nil, errStoreDown
}

func (failingStore) CountSessions(ctx context.Context) (int, error) {
	return 0, errStoreDown
}

// blockingStore 写入时先通知 entered，等待 release 关闭后才完成
type blockingStore struct {
	*MemoryFleetStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		MemoryFleetStore: NewMemoryFleetStore(),
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
}

func (b *blockingStore) SaveSessions(ctx context.Context, sessions []models.FleetSession) (int, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.MemoryFleetStore.SaveSessions(ctx, sessions)
}

func ptr(v float64) *float64 { return &v }

func rawRecord(day int, socStart, socEnd, grid, added float64, provider string) models.RawRecord {
	start := time.Date(2024, 1, day, 8, 0, 0, 0, time.UTC)
	return models.RawRecord{
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		SocStart:       socStart,
		SocEnd:         socEnd,
		EnergyFromGrid: ptr(grid),
		EnergyAddedHvb: ptr(added),
		AvgPower:       11,
		Provider:       provider,
		Location:       "Home",
		Latitude:       ptr(48.1),
		Longitude:      ptr(11.5),
		Mileage:        float64(1000 + day*100),
	}
}

func parsed(raws ...models.RawRecord) analytics.ParseResult {
	return analytics.ParseRecords(raws)
}

func testEngine(t *testing.T) *analytics.Engine {
	t.Helper()
	e, err := analytics.New(analytics.DefaultOptions())
	require.NoError(t, err)
	return e
}

func newTestServices(t *testing.T, store FleetStore) (*WorkspaceService, *FleetService, *recordingNotifier) {
	t.Helper()
	fleet := NewFleetService(store, testEngine(t), zap.NewNop())
	notifier := newRecordingNotifier()
	return NewWorkspaceService(zap.NewNop(), fleet, notifier, time.Minute, time.Minute), fleet, notifier
}
