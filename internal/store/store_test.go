package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitao/athena-tasks/internal/apperrors"
)

type record struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestReadAbsentCollectionIsEmpty(t *testing.T) {
	s := newTestStore(t)

	records, err := s.Read("missing")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadWhitespaceOnlyFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.FilePath("blank"), []byte("  \n\t "), 0o644))

	records, err := s.Read("blank")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadCorruptFileFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.FilePath("bad"), []byte("{not json"), 0o644))

	_, err := s.Read("bad")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCorruptData, apperrors.CodeOf(err))
}

func TestMutateCorruptFileFailsWithoutWriting(t *testing.T) {
	s := newTestStore(t)
	content := []byte("{not json")
	require.NoError(t, os.WriteFile(s.FilePath("bad"), content, 0o644))

	_, err := s.Mutate("bad", func(r []json.RawMessage) ([]json.RawMessage, error) {
		return r, nil
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCorruptData, apperrors.CodeOf(err))

	after, err := os.ReadFile(s.FilePath("bad"))
	require.NoError(t, err)
	assert.Equal(t, content, after)
}

func TestMutateCreatesFileOnFirstTouch(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Mutate("fresh", func(r []json.RawMessage) ([]json.RawMessage, error) {
		assert.Empty(t, r)
		return r, nil
	})
	require.NoError(t, err)

	_, err = os.Stat(s.FilePath("fresh"))
	require.NoError(t, err)
}

func TestMutateIdentityRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, err := MutateAs(s, "things", func([]record) ([]record, error) {
		return []record{{ID: "a", Value: 1}, {ID: "b", Value: 2}}, nil
	})
	require.NoError(t, err)

	before, err := ReadAs[record](s, "things")
	require.NoError(t, err)

	_, err = s.Mutate("things", func(r []json.RawMessage) ([]json.RawMessage, error) {
		return r, nil
	})
	require.NoError(t, err)

	after, err := ReadAs[record](s, "things")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMutateTransformErrorWritesNothing(t *testing.T) {
	s := newTestStore(t)

	_, err := MutateAs(s, "things", func([]record) ([]record, error) {
		return []record{{ID: "a", Value: 1}}, nil
	})
	require.NoError(t, err)

	_, err = MutateAs(s, "things", func([]record) ([]record, error) {
		return nil, fmt.Errorf("boom")
	})
	require.Error(t, err)

	after, err := ReadAs[record](s, "things")
	require.NoError(t, err)
	assert.Equal(t, []record{{ID: "a", Value: 1}}, after)
}

func TestNestedCollectionNameCreatesParentDir(t *testing.T) {
	s := newTestStore(t)

	_, err := MutateAs(s, "archive/tasks-2026-01", func([]record) ([]record, error) {
		return []record{{ID: "x"}}, nil
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(s.Dir(), "archive", "tasks-2026-01.json"))
	require.NoError(t, err)
}

func TestConcurrentMutationsLoseNothing(t *testing.T) {
	s := newTestStore(t)
	const n = 25

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := MutateAs(s, "counter", func(records []record) ([]record, error) {
				return append(records, record{ID: fmt.Sprintf("r%d", i), Value: i}), nil
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	records, err := ReadAs[record](s, "counter")
	require.NoError(t, err)
	require.Len(t, records, n)

	seen := make(map[string]bool, n)
	for _, r := range records {
		assert.False(t, seen[r.ID], "duplicate record %s", r.ID)
		seen[r.ID] = true
	}
}

func TestExportReturnsRawBytes(t *testing.T) {
	s := newTestStore(t)
	content := []byte(`[{"id":"a","value":1}]`)
	require.NoError(t, os.WriteFile(s.FilePath("things"), content, 0o644))

	data, err := s.Export("things")
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestExportAbsentCollectionIsEmptyArray(t *testing.T) {
	s := newTestStore(t)

	data, err := s.Export("missing")
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), data)
}

func TestExportContendedLockTimesOut(t *testing.T) {
	s := newTestStore(t)
	holder := flock.New(s.FilePath("held") + ".lock")
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	_, err := s.Export("held")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeLockTimeout, apperrors.CodeOf(err))
}

func TestMutateContendedLockRetriesFullBudget(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Mutate("held", func(r []json.RawMessage) ([]json.RawMessage, error) { return r, nil })
	require.NoError(t, err)

	holder := flock.New(s.FilePath("held") + ".lock")
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	start := time.Now()
	_, err = s.Mutate("held", func(r []json.RawMessage) ([]json.RawMessage, error) { return r, nil })
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeLockTimeout, apperrors.CodeOf(err))
	// One initial attempt plus five retries: waits of 100+200+400+800+1000ms.
	assert.GreaterOrEqual(t, elapsed, 2400*time.Millisecond)
}

func TestListReturnsCollectionNames(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"archive/tasks-2026-01", "archive/tasks-2026-02"} {
		_, err := s.Mutate(name, func(r []json.RawMessage) ([]json.RawMessage, error) { return r, nil })
		require.NoError(t, err)
	}

	names, err := s.List("archive")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"archive/tasks-2026-01", "archive/tasks-2026-02"}, names)
}
