package homeassistant

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Recorder reads long-term statistics straight from the Home Assistant
// recorder database. The REST API has no statistics endpoint, so this
// opens the SQLite file read-only and queries the statistics tables
// directly.
type Recorder struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenRecorder opens the recorder database read-only.
func OpenRecorder(dbPath string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open recorder db: %w", err)
	}
	return &Recorder{db: db, logger: logger.With("component", "recorder")}, nil
}

// Close closes the database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// StatisticMeta describes one statistic series in the recorder.
type StatisticMeta struct {
	StatisticID string `json:"statistic_id"`
	Unit        string `json:"unit"`
	Source      string `json:"source"`
}

// SearchStatistics finds statistic series whose ID or source matches the
// query, case-insensitive.
func (r *Recorder) SearchStatistics(ctx context.Context, query string) ([]StatisticMeta, error) {
	q := "%" + strings.ToLower(query) + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT statistic_id, COALESCE(unit_of_measurement, ''), COALESCE(source, '')
		 FROM statistics_meta
		 WHERE lower(statistic_id) LIKE ? OR lower(source) LIKE ?`,
		q, q,
	)
	if err != nil {
		return nil, fmt.Errorf("query statistics_meta: %w", err)
	}
	defer rows.Close()

	var results []StatisticMeta
	for rows.Next() {
		var m StatisticMeta
		if err := rows.Scan(&m.StatisticID, &m.Unit, &m.Source); err != nil {
			return nil, fmt.Errorf("scan statistics_meta: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// DailyUsage is the usage accumulated during one UTC day.
type DailyUsage struct {
	Date  string  `json:"date"`
	Usage float64 `json:"usage"`
	Unit  string  `json:"unit"`
}

// StatisticSummary summarizes one cumulative statistic series over a
// window: total usage (last sum minus first sum), the latest cumulative
// value, and a per-day breakdown.
type StatisticSummary struct {
	Total            float64      `json:"total"`
	Unit             string       `json:"unit"`
	LatestCumulative float64      `json:"latest_cumulative"`
	Daily            []DailyUsage `json:"daily"`
	Error            string       `json:"error,omitempty"`
}

// GetStatistics summarizes the given statistic series over the last
// `hours` hours. Series with no data in the window get an Error entry
// instead of failing the whole call.
func (r *Recorder) GetStatistics(ctx context.Context, statisticIDs []string, hours int) (map[string]StatisticSummary, error) {
	if hours <= 0 {
		hours = 48
	}
	startTS := float64(time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Unix())

	// Resolve statistic IDs to metadata rows.
	placeholders := strings.Repeat("?,", len(statisticIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(statisticIDs))
	for i, id := range statisticIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, statistic_id, COALESCE(unit_of_measurement, '')
		 FROM statistics_meta WHERE statistic_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query statistics_meta: %w", err)
	}

	type metaRow struct {
		id   int64
		unit string
	}
	meta := make(map[string]metaRow)
	for rows.Next() {
		var id int64
		var sid, unit string
		if err := rows.Scan(&id, &sid, &unit); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan statistics_meta: %w", err)
		}
		meta[sid] = metaRow{id: id, unit: unit}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make(map[string]StatisticSummary)
	for sid, info := range meta {
		summary, err := r.summarizeSeries(ctx, info.id, info.unit, startTS)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", sid, err)
		}
		result[sid] = summary
	}

	// Unknown IDs still get an entry so the caller can tell them apart
	// from transport failures.
	for _, sid := range statisticIDs {
		if _, ok := result[sid]; !ok {
			result[sid] = StatisticSummary{Error: "unknown statistic_id"}
		}
	}

	return result, nil
}

func (r *Recorder) summarizeSeries(ctx context.Context, metadataID int64, unit string, startTS float64) (StatisticSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT start_ts, COALESCE(sum, 0.0)
		 FROM statistics
		 WHERE metadata_id = ? AND start_ts >= ?
		 ORDER BY start_ts ASC`,
		metadataID, startTS,
	)
	if err != nil {
		return StatisticSummary{}, fmt.Errorf("query statistics: %w", err)
	}
	defer rows.Close()

	type point struct {
		ts  float64
		sum float64
	}
	var points []point
	for rows.Next() {
		var p point
		if err := rows.Scan(&p.ts, &p.sum); err != nil {
			return StatisticSummary{}, fmt.Errorf("scan statistics: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return StatisticSummary{}, err
	}

	if len(points) == 0 {
		return StatisticSummary{Unit: unit, Error: "no data in range"}, nil
	}

	// The sum column is a running total, so window usage is last - first.
	total := round3(points[len(points)-1].sum - points[0].sum)

	// Daily breakdown: per UTC day, usage = day's max sum minus the
	// previous day's max (first day uses its own first sample).
	dailyMax := make(map[string]float64)
	dailyFirst := make(map[string]float64)
	for _, p := range points {
		day := time.Unix(int64(p.ts), 0).UTC().Format("2006-01-02")
		if cur, ok := dailyMax[day]; !ok || p.sum > cur {
			dailyMax[day] = p.sum
		}
		if _, ok := dailyFirst[day]; !ok {
			dailyFirst[day] = p.sum
		}
	}

	days := make([]string, 0, len(dailyMax))
	for day := range dailyMax {
		days = append(days, day)
	}
	sort.Strings(days)

	var daily []DailyUsage
	for i, day := range days {
		startVal := dailyFirst[day]
		if i > 0 {
			startVal = dailyMax[days[i-1]]
		}
		daily = append(daily, DailyUsage{
			Date:  day,
			Usage: round3(dailyMax[day] - startVal),
			Unit:  unit,
		})
	}

	return StatisticSummary{
		Total:            total,
		Unit:             unit,
		LatestCumulative: round3(points[len(points)-1].sum),
		Daily:            daily,
	}, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
