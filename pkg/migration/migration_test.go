package migration

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	mockQuestdb "github.com/muhammadchandra19/tickstore/pkg/questdb/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFS = fstest.MapFS{
	"20250101000000_create_bars.up.sql":   {Data: []byte("CREATE TABLE bars (x INT)\n")},
	"20250101000000_create_bars.down.sql": {Data: []byte("DROP TABLE bars")},
	"20250201000000_add_index.up.sql":     {Data: []byte("ALTER TABLE bars ADD COLUMN y INT")},
	"README.md":                           {Data: []byte("not a migration")},
}

func expectApplied(client *mockQuestdb.MockQuestDBClient, rows *mockQuestdb.MockRowsInterface, ids ...string) {
	client.EXPECT().Query(gomock.Any(), "SELECT id FROM schema_migrations ORDER BY applied_at").Return(rows, nil)
	for _, id := range ids {
		id := id
		rows.EXPECT().Next().Return(true)
		rows.EXPECT().Scan(gomock.Any()).DoAndReturn(func(dest ...any) error {
			*dest[0].(*string) = id
			return nil
		})
	}
	rows.EXPECT().Next().Return(false)
	rows.EXPECT().Err().Return(nil)
	rows.EXPECT().Close()
}

func TestRunner_Load(t *testing.T) {
	r := NewRunner(nil, testFS, logger.NewNopLogger())

	migrations, err := r.Load()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, "20250101000000_create_bars", migrations[0].ID)
	assert.Equal(t, "create_bars", migrations[0].Name)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), migrations[0].Timestamp)
	assert.Equal(t, "CREATE TABLE bars (x INT)", migrations[0].UpSQL)
	assert.Equal(t, "DROP TABLE bars", migrations[0].DownSQL)
	assert.Empty(t, migrations[1].DownSQL)
}

func TestRunner_Up(t *testing.T) {
	type mockDeps struct {
		client *mockQuestdb.MockQuestDBClient
		rows   *mockQuestdb.MockRowsInterface
	}

	testCases := []struct {
		name     string
		steps    int
		mockFn   func(m mockDeps)
		assertFn func(t *testing.T, n int, err error)
	}{
		{
			name: "applies pending migrations",
			mockFn: func(m mockDeps) {
				m.client.EXPECT().Exec(gomock.Any(), createMigrationTable).Return(nil)
				expectApplied(m.client, m.rows, "20250101000000_create_bars")
				gomock.InOrder(
					m.client.EXPECT().Exec(gomock.Any(), "ALTER TABLE bars ADD COLUMN y INT").Return(nil),
					m.client.EXPECT().Exec(gomock.Any(), "INSERT INTO schema_migrations VALUES ($1, $2, now())",
						[]interface{}{"20250201000000_add_index", "add_index"}).Return(nil),
				)
			},
			assertFn: func(t *testing.T, n int, err error) {
				assert.NoError(t, err)
				assert.Equal(t, 1, n)
			},
		},
		{
			name:  "limits steps",
			steps: 1,
			mockFn: func(m mockDeps) {
				m.client.EXPECT().Exec(gomock.Any(), createMigrationTable).Return(nil)
				expectApplied(m.client, m.rows)
				m.client.EXPECT().Exec(gomock.Any(), "CREATE TABLE bars (x INT)").Return(nil)
				m.client.EXPECT().Exec(gomock.Any(), "INSERT INTO schema_migrations VALUES ($1, $2, now())",
					[]interface{}{"20250101000000_create_bars", "create_bars"}).Return(nil)
			},
			assertFn: func(t *testing.T, n int, err error) {
				assert.NoError(t, err)
				assert.Equal(t, 1, n)
			},
		},
		{
			name: "nothing pending",
			mockFn: func(m mockDeps) {
				m.client.EXPECT().Exec(gomock.Any(), createMigrationTable).Return(nil)
				expectApplied(m.client, m.rows, "20250101000000_create_bars", "20250201000000_add_index")
			},
			assertFn: func(t *testing.T, n int, err error) {
				assert.NoError(t, err)
				assert.Zero(t, n)
			},
		},
		{
			name: "error: migration fails",
			mockFn: func(m mockDeps) {
				m.client.EXPECT().Exec(gomock.Any(), createMigrationTable).Return(nil)
				expectApplied(m.client, m.rows, "20250101000000_create_bars")
				m.client.EXPECT().Exec(gomock.Any(), "ALTER TABLE bars ADD COLUMN y INT").Return(errors.New("table busy"))
			},
			assertFn: func(t *testing.T, n int, err error) {
				assert.ErrorContains(t, err, "failed to apply migration 20250201000000_add_index")
				assert.Zero(t, n)
			},
		},
		{
			name: "error: migration table",
			mockFn: func(m mockDeps) {
				m.client.EXPECT().Exec(gomock.Any(), createMigrationTable).Return(errors.New("connection refused"))
			},
			assertFn: func(t *testing.T, n int, err error) {
				assert.ErrorContains(t, err, "connection refused")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			m := mockDeps{
				client: mockQuestdb.NewMockQuestDBClient(ctrl),
				rows:   mockQuestdb.NewMockRowsInterface(ctrl),
			}
			tc.mockFn(m)

			n, err := NewRunner(m.client, testFS, logger.NewNopLogger()).Up(context.Background(), tc.steps)
			tc.assertFn(t, n, err)
		})
	}
}

func TestRunner_Down(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mockQuestdb.NewMockQuestDBClient(ctrl)
	rows := mockQuestdb.NewMockRowsInterface(ctrl)
	r := NewRunner(client, testFS, logger.NewNopLogger())

	_, err := r.Down(context.Background(), 0)
	assert.Error(t, err)

	expectApplied(client, rows, "20250101000000_create_bars", "20250201000000_add_index")
	n, err := r.Down(context.Background(), 1)
	assert.ErrorContains(t, err, "no DOWN SQL found for migration 20250201000000_add_index")
	assert.Zero(t, n)

	rows = mockQuestdb.NewMockRowsInterface(ctrl)
	expectApplied(client, rows, "20250101000000_create_bars")
	client.EXPECT().Exec(gomock.Any(), "DROP TABLE bars").Return(nil)
	client.EXPECT().Exec(gomock.Any(), "DELETE FROM schema_migrations WHERE id = $1", []interface{}{"20250101000000_create_bars"}).Return(nil)

	n, err = r.Down(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
