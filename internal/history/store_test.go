package history

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kartoza/stunting-risk/internal/inference"
)

func newTestStore(t *testing.T, cacheSize int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "history.db"), cacheSize)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord() inference.RawRecord {
	return inference.RawRecord{
		Gender:          inference.GenderFemale,
		AgeMonths:       24,
		BirthWeightKg:   3.0,
		BirthLengthCm:   49,
		CurrentWeightKg: 10,
		CurrentLengthCm: 80,
	}
}

func testResult(p float64) *inference.Result {
	r := &inference.Result{
		ProbabilityStunted:    p,
		ProbabilityNotStunted: 1 - p,
		Threshold:             0.7,
		AtRisk:                p >= 0.7,
	}
	if r.AtRisk {
		r.PredictedClass = 1
		r.ModelVote = 1
	}
	return r
}

func TestRecordAndGet(t *testing.T) {
	ctx := context.Background()
	for _, size := range []int{0, 8} {
		s := newTestStore(t, size)

		e, err := s.Record(ctx, testRecord(), testResult(0.8), "v1")
		require.NoError(t, err)
		assert.NotEmpty(t, e.ID)
		assert.True(t, e.AtRisk)

		// bypass the cache so the row is read back from sqlite
		if s.cache != nil {
			s.cache.Purge()
		}

		got, err := s.Get(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e.ID, got.ID)
		assert.Equal(t, "Female", got.Gender)
		assert.Equal(t, 24, got.AgeMonths)
		assert.InDelta(t, 0.8, got.ProbabilityStunted, 1e-12)
		assert.InDelta(t, 0.2, got.ProbabilityNotStunted, 1e-12)
		assert.Equal(t, 1, got.PredictedClass)
		assert.True(t, got.AtRisk)
		assert.Equal(t, "v1", got.ModelVersion)
		assert.WithinDuration(t, e.CreatedAt, got.CreatedAt, time.Millisecond)
		assert.Equal(t, testRecord(), got.Record())
	}
}

func TestGetCached(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	e, err := s.Record(ctx, testRecord(), testResult(0.3), "v1")
	require.NoError(t, err)

	cached, ok := s.cache.Get(e.ID)
	require.True(t, ok)
	assert.Equal(t, e, cached)

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t, 4)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 0)

	var ids []string
	for _, p := range []float64{0.1, 0.5, 0.9} {
		e, err := s.Record(ctx, testRecord(), testResult(p), "v1")
		require.NoError(t, err)
		ids = append(ids, e.ID)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	page, err := s.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)

	empty, err := s.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 0)

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)

	for _, p := range []float64{0.2, 0.4, 0.75, 0.9} {
		_, err := s.Record(ctx, testRecord(), testResult(p), "v1")
		require.NoError(t, err)
	}

	sum, err = s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Count)
	assert.Equal(t, 2, sum.AtRisk)
	assert.InDelta(t, 0.5, sum.AtRiskRate, 1e-12)
	assert.InDelta(t, 0.5625, sum.MeanProbabilityStunted, 1e-12)
	assert.InDelta(t, 0.575, sum.MedianProbabilityStunted, 1e-12)
	assert.InDelta(t, 0.9, sum.MaxProbabilityStunted, 1e-12)
}

func TestExportXLSX(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 0)

	e, err := s.Record(ctx, testRecord(), testResult(0.8), "v1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.ExportXLSX(ctx, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, e.ID, rows[1][0])
	assert.Equal(t, "Female", rows[1][2])
	assert.Equal(t, inference.LabelAtRisk, rows[1][11])
	assert.Equal(t, "v1", rows[1][13])
}
