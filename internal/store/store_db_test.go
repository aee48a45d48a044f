package store

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"route_editor/internal/geo"
)

// captured remembers the value bound to one statement argument.
type captured struct {
	value driver.Value
}

func (c *captured) Match(v driver.Value) bool {
	c.value = v
	return true
}

func (c *captured) text() string {
	switch v := c.value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// sameAs matches an argument equal to one captured earlier in the test.
type sameAs struct {
	c *captured
}

func (s sameAs) Match(v driver.Value) bool {
	return v == s.c.value
}

var routeColumns = []string{
	"id", "name", "color", "coordinates", "points", "total_points", "public",
	"geometry", "created_by", "updated_by", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return New(db), mock
}

func TestSave_CreateWritesOneRowAndNotifies(t *testing.T) {
	s, mock := newMockStore(t)
	route := sampleRoute()

	var coordinates, geometry, id, points captured
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "routes" \(.*"created_at".*\) VALUES \(.*NOW\(\).*\)`).
		WithArgs("#FF5722", &coordinates, "admin-1", &geometry, &id, "Línea 12", &points, false, 2, "admin-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT pg_notify\(\$1, \$2\)`).
		WithArgs(Channel, sameAs{&id}).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "routes" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(routeColumns).AddRow(
			"new-id", "Línea 12", "#FF5722", []byte("[]"), []byte("[]"), 2, false,
			[]byte{}, "admin-1", "admin-1", stamp, stamp,
		))

	saved, err := s.Save(context.Background(), route, "admin-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = uuid.Parse(id.text())
	assert.NoError(t, err, "a created route gets a uuid")
	assert.Equal(t, "admin-1", saved.CreatedBy)
	assert.Equal(t, stamp, saved.CreatedAt)

	assert.Equal(t, route.Coordinates(), geo.DecodeCoordinates([]byte(coordinates.text())))
	line, err := geo.DecodeWKB(geometry.value.([]byte))
	require.NoError(t, err)
	assert.Equal(t, route.Coordinates(), line)
	assert.Contains(t, points.text(), "Plaza Principal")
}

func TestSave_UpdateReadsBackWhatItWrote(t *testing.T) {
	s, mock := newMockStore(t)
	route := sampleRoute()
	route.ID = "route-1"
	cols, err := columns(route)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "routes" SET .*"updated_at"=NOW\(\).* WHERE id = \$\d+`).
		WithArgs("#FF5722", cols["coordinates"], cols["geometry"], "Línea 12", cols["points"], false, 2, "admin-2", "route-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT pg_notify`).
		WithArgs(Channel, "route-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "routes" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(routeColumns).AddRow(
			"route-1", "Línea 12", "#FF5722",
			[]byte(cols["coordinates"].(string)), []byte(cols["points"].(string)), 2, false,
			cols["geometry"], "seed", "admin-2", time.Time{}, time.Time{},
		))

	saved, err := s.Save(context.Background(), route, "admin-2")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "route-1", saved.ID)
	assert.Equal(t, route.Points, saved.Points)
	assert.Equal(t, "seed", saved.CreatedBy)
	assert.Equal(t, "admin-2", saved.UpdatedBy)

	line, err := geo.DecodeWKB(cols["geometry"].([]byte))
	require.NoError(t, err)
	assert.Equal(t, saved.Coordinates(), line)
}

func TestSave_UpdateOfMissingRouteRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	route := sampleRoute()
	route.ID = "gone"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "routes" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.Save(context.Background(), route, "admin-1")
	assert.ErrorIs(t, err, ErrRouteNotFound)
	assert.NoError(t, mock.ExpectationsWereMet(), "no notification and no read-back")
}

func TestDelete_HardDeleteAndNotify(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "routes" WHERE id = \$1`).
		WithArgs("route-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT pg_notify`).
		WithArgs(Channel, "route-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.Delete(context.Background(), "route-1", "admin-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_MissingRoute(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "routes"`).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, s.Delete(context.Background(), "nope", "admin-1"), ErrRouteNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_MissingRoute(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "routes" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(routeColumns))

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRouteNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_PublicRoutesAfterBuiltins(t *testing.T) {
	s, mock := newMockStore(t)
	cols, err := columns(sampleRoute())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "routes" WHERE public = \$1 ORDER BY name ASC`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows(routeColumns).AddRow(
			"route-1", "Línea 12", "#FF5722",
			[]byte(cols["coordinates"].(string)), []byte(cols["points"].(string)), 2, true,
			cols["geometry"], "seed", "seed", time.Time{}, time.Time{},
		))

	list, err := s.List(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	builtins := Builtins()
	require.Len(t, list, len(builtins)+1)
	assert.Equal(t, builtins[0].ID, list[0].ID)
	last := list[len(list)-1]
	assert.Equal(t, "route-1", last.ID)
	assert.Equal(t, 2, last.TotalPoints())
}
