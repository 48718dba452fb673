// Package export writes analysis results as columnar files for notebooks
// and dataframe tools.
package export

import (
	"errors"
	"math"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"runstream/internal/analysis"
)

// ErrNoSeries is returned when a result has nothing to export
var ErrNoSeries = errors.New("result has no series")

type seriesRow struct {
	ActivityID int64   `parquet:"name=activity_id, type=INT64"`
	Index      int64   `parquet:"name=index, type=INT64"`
	TimeS      float64 `parquet:"name=time_s, type=DOUBLE"`
	DistanceM  float64 `parquet:"name=distance_m, type=DOUBLE"`
	PaceSPerKm float64 `parquet:"name=pace_s_per_km, type=DOUBLE"`
	HR         float64 `parquet:"name=hr, type=DOUBLE"`
	Effort     float64 `parquet:"name=effort, type=DOUBLE"`
	Segment    string  `parquet:"name=segment, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

type segmentRow struct {
	ActivityID int64   `parquet:"name=activity_id, type=INT64"`
	Type       string  `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	StartIndex int64   `parquet:"name=start_index, type=INT64"`
	EndIndex   int64   `parquet:"name=end_index, type=INT64"`
	StartTimeS float64 `parquet:"name=start_time_s, type=DOUBLE"`
	DurationS  float64 `parquet:"name=duration_s, type=DOUBLE"`
	DistanceM  float64 `parquet:"name=distance_m, type=DOUBLE"`
	AvgPaceSKm float64 `parquet:"name=avg_pace_s_km, type=DOUBLE"`
	AvgHR      float64 `parquet:"name=avg_hr, type=DOUBLE"`
	AvgCadence float64 `parquet:"name=avg_cadence, type=DOUBLE"`
	AvgGrade   float64 `parquet:"name=avg_grade, type=DOUBLE"`
}

// Series encodes the visualization series with one row per retained point.
// Absent channels are NaN and each row carries the segment it falls in.
func Series(r *analysis.StreamAnalysisResult) ([]byte, error) {
	if r == nil || len(r.Series) == 0 {
		return nil, ErrNoSeries
	}
	rows := make([]any, 0, len(r.Series))
	for _, p := range r.Series {
		rows = append(rows, seriesRow{
			ActivityID: r.ActivityID,
			Index:      int64(p.Index),
			TimeS:      p.TimeS,
			DistanceM:  p.DistanceM,
			PaceSPerKm: valueOrNaN(p.PaceSPerKm),
			HR:         valueOrNaN(p.HR),
			Effort:     p.Effort,
			Segment:    string(segmentAt(r.Segments, p.Index)),
		})
	}
	return marshal(new(seriesRow), rows)
}

// Segments encodes the segment table of a result
func Segments(r *analysis.StreamAnalysisResult) ([]byte, error) {
	if r == nil || len(r.Segments) == 0 {
		return nil, ErrNoSeries
	}
	rows := make([]any, 0, len(r.Segments))
	for _, s := range r.Segments {
		rows = append(rows, segmentRow{
			ActivityID: r.ActivityID,
			Type:       string(s.Type),
			StartIndex: int64(s.StartIndex),
			EndIndex:   int64(s.EndIndex),
			StartTimeS: s.StartTimeS,
			DurationS:  s.DurationS,
			DistanceM:  s.DistanceM,
			AvgPaceSKm: valueOrNaN(s.AvgPaceSKm),
			AvgHR:      valueOrNaN(s.AvgHR),
			AvgCadence: valueOrNaN(s.AvgCadence),
			AvgGrade:   valueOrNaN(s.AvgGrade),
		})
	}
	return marshal(new(segmentRow), rows)
}

func marshal(schema any, rows []any) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, schema, 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

func segmentAt(segs []analysis.Segment, idx int) analysis.SegmentType {
	for _, s := range segs {
		if idx >= s.StartIndex && idx <= s.EndIndex {
			return s.Type
		}
	}
	return ""
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
