package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/chargegazer/internal/state"
	"github.com/langchou/chargegazer/pkg/ws"
)

func TestGetOrCreate(t *testing.T) {
	svc, _, _ := newTestServices(t, nil)

	w, created := svc.GetOrCreate("")
	require.True(t, created)
	assert.Len(t, w.ID, 36)

	again, created := svc.GetOrCreate(w.ID)
	assert.False(t, created)
	assert.Same(t, w, again)

	other, created := svc.GetOrCreate("does-not-exist")
	assert.True(t, created)
	assert.NotEqual(t, "does-not-exist", other.ID)
	assert.Equal(t, 2, svc.Count())

	_, err := svc.Get("does-not-exist")
	assert.True(t, errors.Is(err, ErrWorkspaceNotFound))
}

func TestUploadReplacesSnapshot(t *testing.T) {
	svc, _, notifier := newTestServices(t, nil)
	w, _ := svc.GetOrCreate("")

	empty := w.Dataset()
	assert.NotNil(t, empty.Sessions)
	assert.Empty(t, empty.Sessions)

	bad := rawRecord(3, 20, 80, 10, 9, "EnBW")
	bad.EndTime = bad.StartTime.Add(-time.Minute)

	result, err := svc.Upload(w, parsed(
		rawRecord(1, 20, 80, 50, 45, "EnBW"),
		rawRecord(2, 30, 30, 0, 0, "IONITY"),
		bad,
	))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, state.StateUploaded, result.Kind)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "record 2")

	first := w.Dataset()
	assert.Len(t, first.Sessions, 2)
	s, ok := first.Session(first.Sessions[1].ID)
	require.True(t, ok)
	assert.Equal(t, "IONITY", s.Provider)

	_, err = svc.Upload(w, parsed(rawRecord(5, 20, 80, 50, 45, "EnBW")))
	require.NoError(t, err)

	// 旧快照不受新上传影响
	assert.Len(t, first.Sessions, 2)
	assert.Len(t, w.Dataset().Sessions, 1)

	assert.Equal(t, []ws.DatasetLoaded{
		{Count: 2, Rejected: 1, Kind: state.StateUploaded},
		{Count: 1, Rejected: 0, Kind: state.StateUploaded},
	}, notifier.loaded[w.ID])
}

func TestReset(t *testing.T) {
	svc, _, notifier := newTestServices(t, nil)
	w, _ := svc.GetOrCreate("")

	_, err := svc.LoadDemo(w, parsed(rawRecord(1, 20, 80, 50, 45, "EnBW")))
	require.NoError(t, err)
	assert.Equal(t, state.StateDemo, w.State().CurrentState)

	require.NoError(t, svc.Reset(w))
	assert.Equal(t, state.StateEmpty, w.State().CurrentState)
	assert.Empty(t, w.Dataset().Sessions)
	assert.Equal(t, 1, notifier.resets[w.ID])
}

func TestShare(t *testing.T) {
	store := NewMemoryFleetStore()
	svc, _, _ := newTestServices(t, store)
	ctx := context.Background()

	w, _ := svc.GetOrCreate("")
	_, err := svc.Upload(w, parsed(
		rawRecord(1, 20, 80, 50, 45, "EnBW"),
		rawRecord(2, 20, 80, 50, 45, "EnBW"),
	))
	require.NoError(t, err)

	_, err = svc.Share(ctx, w, " ")
	assert.True(t, errors.Is(err, ErrModelRequired))
	assert.Equal(t, state.StateUploaded, w.State().CurrentState)

	result, err := svc.Share(ctx, w, "i4 eDrive40")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, 2, result.StoredCount)
	assert.Equal(t, state.StateShared, w.State().CurrentState)
	assert.Equal(t, state.StateShared, w.Dataset().Kind)

	// 同一份数据再次上传共享不会重复保存
	other, _ := svc.GetOrCreate("")
	_, err = svc.Upload(other, parsed(rawRecord(1, 20, 80, 50, 45, "EnBW")))
	require.NoError(t, err)
	result, err = svc.Share(ctx, other, "i4 eDrive40")
	require.NoError(t, err)
	assert.Zero(t, result.Stored)
	assert.Equal(t, 2, result.StoredCount)
}

func TestShareRejectsDemoData(t *testing.T) {
	svc, _, _ := newTestServices(t, NewMemoryFleetStore())
	w, _ := svc.GetOrCreate("")

	_, err := svc.LoadDemo(w, parsed(rawRecord(1, 20, 80, 50, 45, "EnBW")))
	require.NoError(t, err)

	_, err = svc.Share(context.Background(), w, "iX")
	assert.True(t, errors.Is(err, state.ErrTransition))
}

func TestShareWithoutFleetStore(t *testing.T) {
	svc, _, _ := newTestServices(t, nil)
	w, _ := svc.GetOrCreate("")
	_, err := svc.Upload(w, parsed(rawRecord(1, 20, 80, 50, 45, "EnBW")))
	require.NoError(t, err)

	_, err = svc.Share(context.Background(), w, "iX")
	assert.True(t, errors.Is(err, ErrFleetDisabled))
	assert.Equal(t, state.StateUploaded, w.State().CurrentState)
}

func TestUploadAndShare(t *testing.T) {
	store := NewMemoryFleetStore()
	svc, _, notifier := newTestServices(t, store)
	w, _ := svc.GetOrCreate("")

	result, shared, err := svc.UploadAndShare(context.Background(), w, parsed(
		rawRecord(1, 20, 80, 50, 45, "EnBW"),
		rawRecord(2, 20, 80, 50, 45, "EnBW"),
	), "iX")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, state.StateShared, result.Kind)
	assert.Equal(t, 2, shared.Stored)
	assert.Equal(t, state.StateShared, w.State().CurrentState)
	assert.Len(t, w.Dataset().Sessions, 2)
	assert.Equal(t, []ws.DatasetLoaded{{Count: 2, Kind: state.StateShared}}, notifier.loaded[w.ID])
}

func TestUploadAndShareStoreFailureKeepsDataset(t *testing.T) {
	svc, _, notifier := newTestServices(t, failingStore{})
	w, _ := svc.GetOrCreate("")

	_, err := svc.Upload(w, parsed(rawRecord(1, 20, 80, 50, 45, "EnBW")))
	require.NoError(t, err)
	before := w.Dataset()

	_, _, err = svc.UploadAndShare(context.Background(), w, parsed(
		rawRecord(2, 20, 80, 50, 45, "IONITY"),
		rawRecord(3, 20, 80, 50, 45, "IONITY"),
	), "iX")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errStoreDown))

	assert.Same(t, before, w.Dataset())
	assert.Equal(t, state.StateUploaded, w.State().CurrentState)
	assert.Len(t, notifier.loaded[w.ID], 1)
}

func TestShareDoesNotBlockOtherWorkspaces(t *testing.T) {
	store := newBlockingStore()
	svc, _, _ := newTestServices(t, store)
	w, _ := svc.GetOrCreate("")
	_, err := svc.Upload(w, parsed(rawRecord(1, 20, 80, 50, 45, "EnBW")))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Share(context.Background(), w, "iX")
		done <- err
	}()
	<-store.entered

	// 车队写入进行中，其他工作区和过期清理照常工作
	finished := make(chan struct{})
	go func() {
		svc.ExpireIdle(time.Now())
		svc.GetOrCreate("")
		_ = w.Dataset()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("workspace operations blocked by fleet write")
	}

	close(store.release)
	require.NoError(t, <-done)
	assert.Equal(t, state.StateShared, w.State().CurrentState)
}

func TestShareRejectsDatasetReplacedDuringWrite(t *testing.T) {
	store := newBlockingStore()
	svc, _, _ := newTestServices(t, store)
	w, _ := svc.GetOrCreate("")
	_, err := svc.Upload(w, parsed(rawRecord(1, 20, 80, 50, 45, "EnBW")))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Share(context.Background(), w, "iX")
		done <- err
	}()
	<-store.entered

	_, err = svc.Upload(w, parsed(rawRecord(2, 20, 80, 50, 45, "IONITY")))
	require.NoError(t, err)
	close(store.release)

	err = <-done
	assert.True(t, errors.Is(err, state.ErrTransition))
	assert.Equal(t, state.StateUploaded, w.State().CurrentState)
	assert.Equal(t, "IONITY", w.Dataset().Sessions[0].Provider)
}

func TestExpireIdle(t *testing.T) {
	svc, _, notifier := newTestServices(t, nil)
	w, _ := svc.GetOrCreate("")
	fresh, _ := svc.GetOrCreate("")

	expired := svc.ExpireIdle(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 2, expired)
	_, err := svc.Get(w.ID)
	assert.True(t, errors.Is(err, ErrWorkspaceNotFound))
	assert.Equal(t, 1, notifier.resets[fresh.ID])

	assert.Zero(t, svc.ExpireIdle(time.Now()))
}

func TestStartStop(t *testing.T) {
	svc, _, _ := newTestServices(t, nil)
	svc.interval = 10 * time.Millisecond
	svc.ttl = time.Nanosecond

	svc.GetOrCreate("")
	svc.Start(context.Background())
	defer svc.Stop()

	assert.Eventually(t, func() bool { return svc.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestInitData(t *testing.T) {
	svc, _, _ := newTestServices(t, nil)
	w, _ := svc.GetOrCreate("")

	st, ok := svc.InitData(w.ID).(*state.DatasetState)
	require.True(t, ok)
	assert.Equal(t, state.StateEmpty, st.CurrentState)

	st, ok = svc.InitData("unknown").(*state.DatasetState)
	require.True(t, ok)
	assert.Equal(t, "unknown", st.WorkspaceID)
}
