package storage

// sqlite.go — persistencia de simulaciones y barridos.
//
// Estrategia:
//   - `runs`: una fila por simulación con sus métricas y parámetros de coste.
//   - `sweep_rows`: una fila por combinación del barrido, fallidas incluidas
//     (la columna error_kind distingue el tipo de fallo).
// Los mapas (métricas por segmento, parámetros) se serializan como texto
// "clave=valor" en orden estable para que dos ejecuciones idénticas dejen
// bytes idénticos en disco.

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/etflab/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por simulación
CREATE TABLE IF NOT EXISTS runs (
    run_id       TEXT PRIMARY KEY,
    strategy     TEXT     NOT NULL,
    ran_at       DATETIME NOT NULL,
    first_date   DATETIME,
    last_date    DATETIME,
    days         INTEGER  NOT NULL DEFAULT 0,
    final_equity REAL     NOT NULL DEFAULT 0,
    metrics      TEXT     NOT NULL,
    costs        TEXT     NOT NULL
);

-- Una fila por combinación de parámetros de un barrido
CREATE TABLE IF NOT EXISTS sweep_rows (
    row_id     TEXT PRIMARY KEY,
    run_id     TEXT     NOT NULL,
    ran_at     DATETIME NOT NULL,
    params     TEXT     NOT NULL,
    full_m     TEXT     NOT NULL,
    in_m       TEXT,
    out_m      TEXT,
    error_kind TEXT     NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_at       ON runs(ran_at DESC);
CREATE INDEX IF NOT EXISTS idx_sweep_run     ON sweep_rows(run_id);
CREATE INDEX IF NOT EXISTS idx_sweep_failed  ON sweep_rows(error_kind);
`

// SQLiteStorage implementa ports.ResultStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica
// el schema. ":memory:" funciona para tests.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// SaveRun implementa ports.ResultStore.
func (s *SQLiteStorage) SaveRun(ctx context.Context, result *domain.BacktestResult, metrics domain.Metrics) error {
	var first, last time.Time
	finalEquity := 0.0
	if n := result.Equity.Len(); n > 0 {
		first = result.Equity.Dates[0]
		last = result.Equity.Dates[n-1]
		finalEquity = result.Equity.Values[n-1]
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_id, strategy, ran_at, first_date, last_date, days, final_equity, metrics, costs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Strategy, time.Now().UTC(),
		first, last, result.NetReturns.Len(), finalEquity,
		encodeMap(metrics), encodeMap(result.Meta),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: %s: %w", result.RunID, err)
	}
	return nil
}

// SaveSweep implementa ports.ResultStore. Cada fila va en su propia
// escritura: un barrido interrumpido conserva lo ya persistido.
func (s *SQLiteStorage) SaveSweep(ctx context.Context, runID string, rows []domain.SweepRow) error {
	stmt, err := s.db.PrepareContext(ctx, `
		INSERT OR REPLACE INTO sweep_rows
		(row_id, run_id, ran_at, params, full_m, in_m, out_m, error_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveSweep: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.ID, runID, now,
			encodeMap(row.Params),
			encodeMap(row.Full),
			nullable(encodeMap(row.InSample), row.InSample == nil),
			nullable(encodeMap(row.OutSample), row.OutSample == nil),
			row.Err,
		)
		if err != nil {
			return fmt.Errorf("storage.SaveSweep: row %s: %w", row.ID, err)
		}
	}
	return nil
}

// Close implementa ports.ResultStore.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// DB expone la conexión subyacente para lecturas ad-hoc.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// encodeMap serializa un mapa float como "a=1 b=2", claves ordenadas.
// NaN se escribe literal — SQLite lo guarda como texto igualmente.
func encodeMap(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(formatValue(m[k]))
	}
	return sb.String()
}

// DecodeMap es la inversa de encodeMap. Exportada para los lectores de la
// base (informes posteriores, tests).
func DecodeMap(s string) map[string]float64 {
	out := make(map[string]float64)
	for _, pair := range strings.Fields(s) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			if v == "NaN" {
				out[k] = math.NaN()
			}
			continue
		}
		out[k] = f
	}
	return out
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func nullable(s string, isNil bool) any {
	if isNil {
		return nil
	}
	return s
}
