package export

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"runstream/internal/analysis"
)

func fp(v float64) *float64 { return &v }

func testResult() *analysis.StreamAnalysisResult {
	return &analysis.StreamAnalysisResult{
		ActivityID: 42,
		Segments: []analysis.Segment{
			{Type: analysis.SegmentWarmup, StartIndex: 0, EndIndex: 9, DurationS: 10, AvgHR: fp(120)},
			{Type: analysis.SegmentSteady, StartIndex: 10, EndIndex: 19, StartTimeS: 10, DurationS: 10},
		},
		Series: []analysis.SeriesPoint{
			{Index: 0, TimeS: 0, PaceSPerKm: fp(330), HR: fp(120), Effort: 0.2},
			{Index: 12, TimeS: 12, DistanceM: 40, PaceSPerKm: fp(300), Effort: 0.5},
			{Index: 19, TimeS: 19, DistanceM: 63, Effort: 0.4},
		},
	}
}

func assertParquet(t *testing.T, data []byte) {
	t.Helper()
	require.Greater(t, len(data), 8)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, "PAR1", string(data[len(data)-4:]))
}

func TestSeries(t *testing.T) {
	data, err := Series(testResult())
	require.NoError(t, err)
	assertParquet(t, data)

	fr := parquetbuffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(fr, new(seriesRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.EqualValues(t, 3, pr.GetNumRows())

	rows := make([]seriesRow, 3)
	require.NoError(t, pr.Read(&rows))
	assert.Equal(t, "warmup", rows[0].Segment)
	assert.Equal(t, "steady", rows[1].Segment)
	assert.True(t, math.IsNaN(rows[1].HR))
	assert.True(t, math.IsNaN(rows[2].PaceSPerKm))
	assert.Equal(t, 300.0, rows[1].PaceSPerKm)
	assert.EqualValues(t, 42, rows[2].ActivityID)
}

func TestSegments(t *testing.T) {
	data, err := Segments(testResult())
	require.NoError(t, err)
	assertParquet(t, data)
}

func TestEmpty(t *testing.T) {
	_, err := Series(&analysis.StreamAnalysisResult{})
	assert.ErrorIs(t, err, ErrNoSeries)
	_, err = Segments(nil)
	assert.ErrorIs(t, err, ErrNoSeries)
}
