package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datalyze-ai/datalyze/core"
)

// Interface compliance (compile-time assertions)
var (
	_ core.SessionStore = (*InMemoryStore)(nil)
	_ core.SessionStore = (*SQLiteStore)(nil)
)

func storesUnderTest(t *testing.T) map[string]core.SessionStore {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]core.SessionStore{
		"in_memory": NewInMemoryStore(),
		"sqlite":    sqlite,
	}
}

func TestStoreRoundTripsEvents(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Create("sess-1")
			require.NoError(t, err)

			events := []core.Event{
				core.NewUserMessageEvent("run-1", "what is the mean?"),
				core.NewHandoffEvent("run-1", "supervisor", "analyst"),
				core.NewFunctionResponseEvent("run-1", "analyst", "fc-1", "analyze_data", "2 rows", nil),
				core.NewMessageEvent("run-1", "analyst", "the mean is 15"),
			}
			for _, ev := range events {
				require.NoError(t, store.AppendEvent("sess-1", ev))
			}

			sess, err := store.Get("sess-1")
			require.NoError(t, err)
			got := sess.GetEvents()
			require.Len(t, got, len(events))

			assert.Equal(t, "what is the mean?", got[0].Text())
			assert.Equal(t, "user", got[0].Content.Role)

			record, ok := got[1].HandoffRecord()
			require.True(t, ok)
			assert.Equal(t, core.Handoff{From: "supervisor", To: "analyst"}, record)

			responses := got[2].GetFunctionResponses()
			require.Len(t, responses, 1)
			assert.Equal(t, "analyze_data", responses[0].Name)
			assert.Equal(t, "2 rows", responses[0].Response)

			assert.Equal(t, "the mean is 15", got[3].Text())
		})
	}
}

func TestStoreAppliesStateDeltas(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Create("sess-1")
			require.NoError(t, err)

			require.NoError(t, store.ApplyDelta("sess-1", map[string]any{"current_dataset": "/tmp/current_data.csv"}))
			require.NoError(t, store.ApplyDelta("sess-1", map[string]any{"last_saved_code": "/tmp/analysis.py"}))

			sess, err := store.Get("sess-1")
			require.NoError(t, err)

			v, ok := sess.GetState("current_dataset")
			require.True(t, ok)
			assert.Equal(t, "/tmp/current_data.csv", v)

			v, ok = sess.GetState("last_saved_code")
			require.True(t, ok)
			assert.Equal(t, "/tmp/analysis.py", v)
		})
	}
}

func TestStoreCreateResetsHistory(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.AppendEvent("sess-1", core.NewUserMessageEvent("run-1", "old question")))

			_, err := store.Create("sess-1")
			require.NoError(t, err)

			sess, err := store.Get("sess-1")
			require.NoError(t, err)
			assert.Equal(t, 0, sess.Len())
		})
	}
}

func TestStoreGetCreatesLazily(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Get("fresh")
			require.NoError(t, err)
			require.NotNil(t, sess)
			assert.Equal(t, "fresh", sess.ID)
			assert.Equal(t, 0, sess.Len())
		})
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent("sess-1", core.NewUserMessageEvent("run-1", "persisted?")))
	require.NoError(t, store.ApplyDelta("sess-1", map[string]any{"current_dataset": "/tmp/current_data.csv"}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	sess, err := reopened.Get("sess-1")
	require.NoError(t, err)
	require.Equal(t, 1, sess.Len())
	assert.Equal(t, "persisted?", sess.GetEvents()[0].Text())

	v, ok := sess.GetState("current_dataset")
	require.True(t, ok)
	assert.Equal(t, "/tmp/current_data.csv", v)
}
