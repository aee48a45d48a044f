package editor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"route_editor/internal/bridge"
	"route_editor/internal/directions"
	"route_editor/internal/geo"
	"route_editor/internal/models"
	"route_editor/internal/store"
)

type MockRouteSaver struct {
	mock.Mock
}

func (m *MockRouteSaver) Save(ctx context.Context, route models.Route, actor string) (models.Route, error) {
	args := m.Called(ctx, route, actor)
	if fn, ok := args.Get(0).(func(context.Context, models.Route, string) models.Route); ok {
		return fn(ctx, route, actor), args.Error(1)
	}
	return args.Get(0).(models.Route), args.Error(1)
}

type fakePaths struct {
	result   directions.Result
	from, to geo.Coordinate
	profile  string
}

func (f *fakePaths) RouteOrFallback(_ context.Context, from, to geo.Coordinate, profile string) directions.Result {
	f.from, f.to, f.profile = from, to, profile
	return f.result
}

type recordingTransport struct {
	mu     sync.Mutex
	frames []map[string]any
}

func (t *recordingTransport) Send(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append(t.frames, m)
	return nil
}

func (t *recordingTransport) last() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

func savedCopy(r models.Route, id string) models.Route {
	r.ID = id
	r.CreatedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	r.UpdatedAt = r.CreatedAt
	return r
}

func TestWorkflow_NewRouteLoadsEmpty(t *testing.T) {
	w := NewWorkflow(models.Route{Name: "Línea 1"}, &MockRouteSaver{}, &fakePaths{})

	st := w.State()
	assert.NotEmpty(t, st.SessionID)
	assert.Empty(t, st.Points)
	assert.False(t, st.Dirty)
	assert.Equal(t, models.DefaultColor, st.Route.Color)
	assert.Empty(t, w.RouteID())
}

func TestWorkflow_SaveCommitsSentPoints(t *testing.T) {
	saver := &MockRouteSaver{}
	w := NewWorkflow(models.Route{Name: "Línea 1", Color: "#1e88e5"}, saver, &fakePaths{})
	for _, p := range threePoints() {
		_, err := w.Session.AddPoint(p)
		require.NoError(t, err)
	}

	saver.On("Save", mock.Anything, mock.AnythingOfType("models.Route"), "admin-1").
		Return(func(ctx context.Context, r models.Route, actor string) models.Route {
			return savedCopy(r, "route-123")
		}, nil).Once()

	saved, err := w.Save(context.Background(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "route-123", saved.ID)
	assert.Equal(t, "#1E88E5", saved.Color)
	assert.Equal(t, 3, saved.TotalPoints())
	assert.Len(t, saved.Coordinates(), 3)

	assert.Equal(t, "route-123", w.RouteID())
	assert.False(t, w.State().Dirty)
	assert.Equal(t, w.Session.Points(), w.Session.Snapshot())
	saver.AssertExpectations(t)
}

func TestWorkflow_SaveFailureLeavesSessionDirty(t *testing.T) {
	saver := &MockRouteSaver{}
	route := models.Route{ID: "route-9", Name: "Línea 9", Points: threePoints()}
	w := NewWorkflow(route, saver, &fakePaths{})
	require.NoError(t, w.Session.MovePoint(0, -17.5, -66.5))

	storeErr := errors.New("connection refused")
	saver.On("Save", mock.Anything, mock.Anything, "admin-1").Return(models.Route{}, storeErr).Once()

	_, err := w.Save(context.Background(), "admin-1")
	assert.ErrorIs(t, err, storeErr)
	assert.True(t, w.State().Dirty)
	assert.False(t, w.State().Saving)
	assert.Equal(t, threePoints()[0].Latitude, w.Session.Snapshot()[0].Latitude)
	saver.AssertNumberOfCalls(t, "Save", 1)
}

func TestWorkflow_ConcurrentSaveRejected(t *testing.T) {
	saver := &MockRouteSaver{}
	route := models.Route{ID: "route-7", Name: "Línea 7", Points: threePoints()}
	w := NewWorkflow(route, saver, &fakePaths{})

	started := make(chan struct{})
	release := make(chan struct{})
	saver.On("Save", mock.Anything, mock.Anything, "admin-1").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(route, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := w.Save(context.Background(), "admin-1")
		done <- err
	}()

	<-started
	assert.True(t, w.State().Saving)
	_, err := w.Save(context.Background(), "admin-1")
	assert.ErrorIs(t, err, ErrSaveInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, w.State().Saving)
	saver.AssertNumberOfCalls(t, "Save", 1)
}

func TestWorkflow_EditDuringSaveStaysDirty(t *testing.T) {
	saver := &MockRouteSaver{}
	route := models.Route{ID: "route-7", Name: "Línea 7", Points: threePoints()}
	w := NewWorkflow(route, saver, &fakePaths{})
	require.NoError(t, w.Session.MovePoint(0, -17.38, -66.15))

	started := make(chan struct{})
	release := make(chan struct{})
	saver.On("Save", mock.Anything, mock.Anything, "admin-1").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(func(ctx context.Context, r models.Route, actor string) models.Route { return r }, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := w.Save(context.Background(), "admin-1")
		done <- err
	}()

	<-started
	require.NoError(t, w.Session.MovePoint(1, -17.37, -66.14))
	newName := "Línea 7B"
	require.NoError(t, w.SetMetadata(Metadata{Name: &newName}))
	close(release)
	require.NoError(t, <-done)

	st := w.State()
	assert.True(t, st.Dirty)
	assert.Equal(t, "Línea 7B", st.Route.Name)
	assert.Equal(t, -17.38, w.Session.Snapshot()[0].Latitude)
	assert.Equal(t, threePoints()[1].Latitude, w.Session.Snapshot()[1].Latitude)
}

func TestWorkflow_SetMetadata(t *testing.T) {
	w := NewWorkflow(models.Route{ID: "route-1", Name: "Línea 1"}, &MockRouteSaver{}, &fakePaths{})

	color := "43a047"
	public := true
	require.NoError(t, w.SetMetadata(Metadata{Color: &color, Public: &public}))

	st := w.State()
	assert.Equal(t, "#43A047", st.Route.Color)
	assert.True(t, st.Route.Public)
	assert.True(t, st.Dirty)

	bad := "green"
	err := w.SetMetadata(Metadata{Color: &bad})
	assert.True(t, models.IsValidation(err))

	blank := "   "
	err = w.SetMetadata(Metadata{Name: &blank})
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, "Línea 1", w.Route().Name)
}

func TestWorkflow_PreviewPath(t *testing.T) {
	mid := geo.Coordinate{Latitude: -17.392, Longitude: -66.158}
	paths := &fakePaths{result: directions.Result{
		Coordinates: []geo.Coordinate{
			{Latitude: -17.3895, Longitude: -66.1568},
			mid,
			{Latitude: -17.3950, Longitude: -66.1650},
		},
		Profile: "foot-walking",
	}}
	w := NewWorkflow(models.Route{ID: "route-1", Name: "Línea 1", Points: threePoints()}, &MockRouteSaver{}, paths)

	tr := &recordingTransport{}
	w.Bridge.Attach(tr)
	w.Bridge.Receive([]byte(`{"type":"mapReady"}`))
	require.True(t, w.Bridge.Ready())

	res, err := w.PreviewPath(context.Background(), "foot-walking")
	require.NoError(t, err)
	assert.Len(t, res.Coordinates, 3)
	assert.Equal(t, "foot-walking", paths.profile)
	assert.Equal(t, threePoints()[0].Coordinate(), paths.from)
	assert.Equal(t, threePoints()[2].Coordinate(), paths.to)

	last := tr.last()
	require.NotNil(t, last)
	assert.Equal(t, bridge.TypeShowRoute, last["type"])
	assert.Len(t, last["coordinates"], 3)
	assert.Len(t, w.Session.Points(), 3, "a preview does not change the points")
}

func TestWorkflow_PreviewNeedsTwoPoints(t *testing.T) {
	w := NewWorkflow(models.Route{Name: "Línea 1"}, &MockRouteSaver{}, &fakePaths{})
	_, err := w.Session.AddPoint(models.Point{Latitude: -17.39, Longitude: -66.15})
	require.NoError(t, err)

	_, err = w.PreviewPath(context.Background(), "")
	assert.True(t, models.IsValidation(err))
}

func TestWorkflow_MapReadyRendersSession(t *testing.T) {
	w := NewWorkflow(models.Route{ID: "route-1", Name: "Línea 1", Points: threePoints()}, &MockRouteSaver{}, &fakePaths{})

	tr := &recordingTransport{}
	w.Bridge.Attach(tr)
	w.Bridge.Receive([]byte(`{"type":"mapReady"}`))

	types := make([]any, 0)
	tr.mu.Lock()
	for _, f := range tr.frames {
		types = append(types, f["type"])
	}
	tr.mu.Unlock()
	assert.Contains(t, types, bridge.TypeShowEditablePoints)
	assert.Equal(t, bridge.TypeSetAddPointMode, types[len(types)-1])

	w.Bridge.Receive([]byte(`{"type":"pointMoved","index":2,"latitude":-17.4,"longitude":-66.17}`))
	assert.Equal(t, -17.4, w.Session.Points()[2].Latitude)
	assert.True(t, w.State().Dirty)
}

func TestWorkflow_SaveAfterDeletingBelowTwoPoints(t *testing.T) {
	// A store without a database fails the test if it is ever reached.
	w := NewWorkflow(models.Route{ID: "route-3", Name: "Línea 3", Points: threePoints()}, store.New(nil), &fakePaths{})

	require.NoError(t, w.Session.DeletePoints([]int{0, 2}))
	pts := w.Session.Points()
	require.Len(t, pts, 1)
	assert.Equal(t, "Mercado", pts[0].Name)
	assert.Equal(t, 0, pts[0].Index)

	_, err := w.Save(context.Background(), "admin-1")
	assert.True(t, models.IsValidation(err))
	assert.True(t, w.State().Dirty)
	assert.Equal(t, "route-3", w.RouteID())
}

type contextSaver struct {
	deadline bool
}

func (s *contextSaver) Save(ctx context.Context, route models.Route, _ string) (models.Route, error) {
	if err := ctx.Err(); err != nil {
		return models.Route{}, err
	}
	_, s.deadline = ctx.Deadline()
	return savedCopy(route, "route-10"), nil
}

func TestWorkflow_SaveOutlivesCancelledCaller(t *testing.T) {
	saver := &contextSaver{}
	w := NewWorkflow(models.Route{Name: "Línea 10", Points: threePoints()}, saver, &fakePaths{})
	require.NoError(t, w.Session.MovePoint(0, -17.38, -66.15))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	saved, err := w.Save(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "route-10", saved.ID)
	assert.True(t, saver.deadline, "the save is still bounded")
	assert.False(t, w.State().Dirty)
}
