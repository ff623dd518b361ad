package report

// console.go — salida por consola de métricas, barridos y atribución.

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/etflab/internal/analytics"
	"github.com/alejandrodnm/etflab/internal/domain"
)

// Console implementa ports.Reporter.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un reporter que escribe a stdout. table activa las
// tablas completas; sin él la salida es compacta, una línea por run.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// PrintRun imprime las métricas de una simulación.
func (c *Console) PrintRun(strategy string, metrics domain.Metrics) {
	if !c.table {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s:", strategy)
		for _, name := range domain.MetricNames {
			if v, ok := metrics[name]; ok && !math.IsNaN(v) {
				fmt.Fprintf(&sb, " %s=%s", name, formatMetric(name, v))
			}
		}
		fmt.Fprintln(c.out, sb.String())
		return
	}

	fmt.Fprintf(c.out, "\n%s\n", strategy)
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Metric", "Value")
	for _, name := range domain.MetricNames {
		v, ok := metrics[name]
		if !ok {
			continue
		}
		tbl.Append(name, formatMetric(name, v))
	}
	tbl.Render()
}

// PrintSweep imprime la tabla de robustez. Las filas fallidas se marcan
// con su tipo de error en vez de métricas.
func (c *Console) PrintSweep(rows []domain.SweepRow) {
	if len(rows) == 0 {
		fmt.Fprintln(c.out, "empty sweep")
		return
	}

	failed := 0
	for _, row := range rows {
		if row.Failed() {
			failed++
		}
	}
	fmt.Fprintf(c.out, "\nsweep: %d combinations, %d failed\n", len(rows), failed)

	hasSplit := false
	for _, row := range rows {
		if row.InSample != nil || row.OutSample != nil {
			hasSplit = true
			break
		}
	}

	tbl := tablewriter.NewWriter(c.out)
	if hasSplit {
		tbl.Header("#", "Params", "Sharpe", "IS Sharpe", "OOS Sharpe", "OOS CAGR", "MaxDD", "Error")
	} else {
		tbl.Header("#", "Params", "Sharpe", "CAGR", "Vol", "MaxDD", "Error")
	}

	for i, row := range rows {
		if row.Failed() {
			if hasSplit {
				tbl.Append(fmt.Sprintf("%d", i+1), paramsLabel(row.Params), "-", "-", "-", "-", "-", row.Err)
			} else {
				tbl.Append(fmt.Sprintf("%d", i+1), paramsLabel(row.Params), "-", "-", "-", "-", row.Err)
			}
			continue
		}
		if hasSplit {
			tbl.Append(
				fmt.Sprintf("%d", i+1),
				paramsLabel(row.Params),
				cell(row.Full["sharpe"], "%.2f"),
				cell(row.InSample["sharpe"], "%.2f"),
				cell(row.OutSample["sharpe"], "%.2f"),
				cell(row.OutSample["cagr"], "%.2f%%", 100),
				cell(row.Full["max_drawdown"], "%.1f%%", 100),
				"",
			)
		} else {
			tbl.Append(
				fmt.Sprintf("%d", i+1),
				paramsLabel(row.Params),
				cell(row.Full["sharpe"], "%.2f"),
				cell(row.Full["cagr"], "%.2f%%", 100),
				cell(row.Full["annual_vol"], "%.2f%%", 100),
				cell(row.Full["max_drawdown"], "%.1f%%", 100),
				"",
			)
		}
	}
	tbl.Render()
}

// PrintAttribution imprime la regresión factorial con alpha, betas y
// significancia.
func (c *Console) PrintAttribution(a *analytics.Attribution, names []string) {
	fmt.Fprintf(c.out, "\nfactor attribution (%d monthly obs, R²=%.3f)\n", a.Obs, a.R2)

	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Term", "Coef", "StdErr", "t-stat")
	tbl.Append("alpha (ann.)",
		fmt.Sprintf("%.2f%%", a.AlphaAnnual*100),
		fmt.Sprintf("%.4f", a.AlphaStdErr),
		fmt.Sprintf("%.2f", a.AlphaTStat))
	for _, name := range names {
		tbl.Append(name,
			fmt.Sprintf("%.3f", a.Betas[name]),
			fmt.Sprintf("%.4f", a.BetaStdErrs[name]),
			fmt.Sprintf("%.2f", a.BetaTStats[name]))
	}
	tbl.Render()
}

// formatMetric presenta tasas como porcentaje y ratios con dos decimales.
func formatMetric(name string, v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	switch name {
	case "cagr", "annual_vol", "max_drawdown":
		return fmt.Sprintf("%.2f%%", v*100)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func cell(v float64, format string, scale ...float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	if len(scale) > 0 {
		v *= scale[0]
	}
	return fmt.Sprintf(format, v)
}

func paramsLabel(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%g", name, params[name])
	}
	return strings.Join(parts, " ")
}
