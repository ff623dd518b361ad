package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/etflab/config"
	"github.com/alejandrodnm/etflab/internal/adapters/marketdata"
	"github.com/alejandrodnm/etflab/internal/adapters/report"
	"github.com/alejandrodnm/etflab/internal/adapters/storage"
	"github.com/alejandrodnm/etflab/internal/analytics"
	"github.com/alejandrodnm/etflab/internal/backtest"
	"github.com/alejandrodnm/etflab/internal/domain"
	"github.com/alejandrodnm/etflab/internal/ports"
	"github.com/alejandrodnm/etflab/internal/schedule"
	"github.com/alejandrodnm/etflab/internal/signal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	strategy := flag.String("strategy", "regime", "strategy: regime|rotation")
	sweep := flag.Bool("sweep", false, "run the parameter robustness sweep")
	split := flag.String("split", "", "train/test split date YYYY-MM-DD (sweep only; overrides config)")
	offline := flag.Bool("offline", false, "use local CSVs instead of remote providers")
	table := flag.Bool("table", false, "print full tables (default: compact 1-line)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	start, end, err := cfg.DateRange()
	if err != nil {
		slog.Error("invalid date range", "err", err)
		os.Exit(1)
	}

	splitStr := *split
	if splitStr == "" {
		splitStr = cfg.Sweep.SplitDate
	}
	var splitDate time.Time
	if splitStr != "" {
		splitDate, err = time.Parse("2006-01-02", splitStr)
		if err != nil {
			slog.Error("invalid split date", "err", err, "split", splitStr)
			os.Exit(1)
		}
	}

	slog.Info("etflab starting",
		"config", *configPath,
		"strategy", *strategy,
		"sweep", *sweep,
		"offline", *offline,
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
	)

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	priceProv, macroProv, err := buildProviders(cfg, *offline)
	if err != nil {
		slog.Error("failed to build data providers", "err", err)
		os.Exit(1)
	}

	prices, err := loadPrices(ctx, priceProv, cfg.Universe.Tickers, start, end)
	if err != nil {
		slog.Error("failed to load prices", "err", err)
		os.Exit(1)
	}
	slog.Info("price table ready", "tickers", len(prices.Tickers), "days", len(prices.Dates))

	macro, err := loadMacro(ctx, macroProv, cfg, prices, start, end)
	if err != nil {
		slog.Error("failed to load macro series", "err", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	console := report.NewConsole(*table)
	eng := backtest.New(backtest.CostConfig{
		TransactionCostBps: cfg.Costs.TransactionCostBps,
		BorrowCostAnnual:   cfg.Costs.BorrowCostAnnual,
		CashRateAnnual:     cfg.Costs.CashRateAnnual,
	})

	if *sweep {
		if err := runSweep(ctx, cfg, eng, prices, macro, *strategy, splitDate, store, console); err != nil {
			slog.Error("sweep failed", "err", err)
			os.Exit(1)
		}
		slog.Info("etflab stopped cleanly")
		return
	}

	if err := runSingle(ctx, cfg, eng, prices, macro, *strategy, store, console); err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}
	slog.Info("etflab stopped cleanly")
}

// macroData agrupa las series macro que necesita la estrategia de régimen.
type macroData struct {
	yield domain.Series
	trend domain.Series
	vol   domain.Series
}

// runSingle ejecuta una simulación con la configuración tal cual y
// presenta métricas, atribución factorial (si hay fichero) y persiste.
func runSingle(ctx context.Context, cfg *config.Config, eng *backtest.Engine, prices *domain.PriceTable, macro macroData, strategyName string, store ports.ResultStore, console ports.Reporter) error {
	gen, err := buildGenerator(cfg, macro, strategyName, nil)
	if err != nil {
		return err
	}

	decisions, err := gen.Decisions(prices)
	if err != nil {
		return err
	}
	weights, err := schedule.Expand(decisions, prices.Dates, prices.Tickers)
	if err != nil {
		return err
	}
	slog.Debug("weights scheduled", "table", schedule.Describe(weights))

	result, err := eng.Run(gen.Name(), prices, weights)
	if err != nil {
		return err
	}

	metrics, err := summarize(cfg, prices, result)
	if err != nil {
		return err
	}
	console.PrintRun(gen.Name(), metrics)

	if cfg.Factors.CSVPath != "" {
		if err := printAttribution(ctx, cfg, result, console); err != nil {
			// La atribución es diagnóstico: un fichero corto no tumba el run.
			slog.Warn("factor attribution skipped", "kind", domain.ErrorKind(err), "err", err)
		}
	}

	if err := store.SaveRun(ctx, result, metrics); err != nil {
		return err
	}
	slog.Info("run saved", "run_id", result.RunID, "strategy", result.Strategy)
	return nil
}

// summarize calcula las métricas, con captura contra el benchmark si está
// en el universo.
func summarize(cfg *config.Config, prices *domain.PriceTable, result *domain.BacktestResult) (domain.Metrics, error) {
	rf := cfg.Costs.RiskFreeAnnual
	if bench, ok := prices.Column(cfg.Universe.Benchmark); ok {
		s, err := analytics.SummarizeWithBenchmark(result.NetReturns, bench.Returns(), rf)
		if err != nil {
			return nil, err
		}
		return s.Map(), nil
	}
	return analytics.Summarize(result.NetReturns, rf).Map(), nil
}

// printAttribution corre la regresión factorial contra el CSV configurado.
func printAttribution(ctx context.Context, cfg *config.Config, result *domain.BacktestResult, console ports.Reporter) error {
	prov := marketdata.NewFactorCSV(cfg.Factors.CSVPath)
	n := result.NetReturns.Len()
	factors, rf, err := prov.FactorReturns(ctx, cfg.Factors.Names,
		result.NetReturns.Dates[0], result.NetReturns.Dates[n-1])
	if err != nil {
		return err
	}
	model := analytics.FactorModel{Names: cfg.Factors.Names, Factors: factors, RiskFree: rf}
	attr, err := analytics.Attribute(result.NetReturns, model, cfg.Factors.MinObs)
	if err != nil {
		return err
	}
	console.PrintAttribution(attr, cfg.Factors.Names)
	return nil
}

// buildProviders elige entre los providers remotos (Stooq + FRED) y el
// modo offline con CSVs locales.
func buildProviders(cfg *config.Config, offline bool) (ports.PriceProvider, ports.MacroProvider, error) {
	if offline || cfg.Data.OfflineDir != "" {
		dir := cfg.Data.OfflineDir
		if dir == "" {
			dir = cfg.Data.CacheDir
		}
		local := marketdata.NewLocalCSV(dir)
		return local, local, nil
	}
	fred, err := marketdata.NewFRED(cfg.Data.FREDAPIKey, cfg.Data.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	return marketdata.NewStooq(cfg.Data.CacheDir), fred, nil
}

// loadPrices descarga el universo completo y lo alinea por intersección
// de calendarios — la única frontera donde se tolera desalineación.
func loadPrices(ctx context.Context, prov ports.PriceProvider, tickers []string, start, end time.Time) (*domain.PriceTable, error) {
	series := make([]domain.InstrumentSeries, 0, len(tickers))
	for _, ticker := range tickers {
		is, err := prov.PriceSeries(ctx, ticker, start, end)
		if err != nil {
			return nil, err
		}
		series = append(series, is)
	}
	return domain.NewPriceTableIntersect(series)
}

// loadMacro carga las series macro de la estrategia de régimen. El proxy
// de tendencia sale de la tabla de precios si el ticker está en el
// universo; si no, del provider de precios.
func loadMacro(ctx context.Context, prov ports.MacroProvider, cfg *config.Config, prices *domain.PriceTable, start, end time.Time) (macroData, error) {
	var m macroData
	var err error

	m.yield, err = prov.MacroSeries(ctx, cfg.Regime.YieldSeries, start, end)
	if err != nil {
		return macroData{}, err
	}
	m.vol, err = prov.MacroSeries(ctx, cfg.Regime.VolSeries, start, end)
	if err != nil {
		return macroData{}, err
	}

	if trend, ok := prices.Column(cfg.Regime.TrendTicker); ok {
		m.trend = trend
		return m, nil
	}
	m.trend, err = prov.MacroSeries(ctx, cfg.Regime.TrendTicker, start, end)
	if err != nil {
		return macroData{}, err
	}
	return m, nil
}

// buildGenerator construye el generador pedido, con overrides numéricos
// opcionales encima de la configuración base (los usa el sweep).
func buildGenerator(cfg *config.Config, macro macroData, name string, overrides map[string]float64) (signal.Generator, error) {
	switch name {
	case "regime":
		return buildRegime(cfg.Regime, macro, overrides)
	case "rotation":
		return buildRotation(cfg.Rotation, overrides)
	default:
		return nil, domain.Configf("unknown strategy %q (want regime|rotation)", name)
	}
}

func buildRegime(rc config.RegimeConfig, macro macroData, overrides map[string]float64) (signal.Generator, error) {
	c := signal.RegimeConfig{
		LongLeg:                 rc.LongLeg,
		ShortLeg:                rc.ShortLeg,
		RateLookbackMonths:      rc.RateLookbackMonths,
		TrendLookbackMonths:     rc.TrendLookbackMonths,
		VolWindowMonths:         rc.VolWindowMonths,
		RateThreshold:           rc.RateThreshold,
		TrendThreshold:          rc.TrendThreshold,
		VolThreshold:            rc.VolThreshold,
		RateEnabled:             rc.RateEnabled,
		TrendEnabled:            rc.TrendEnabled,
		VolEnabled:              rc.VolEnabled,
		RiskOffMode:             rc.RiskOffMode,
		RiskBalanced:            rc.RiskBalanced,
		TargetGross:             rc.TargetGross,
		SpreadMomLookbackMonths: rc.SpreadMomLookbackMonths,
		SpreadMomThreshold:      rc.SpreadMomThreshold,
		VolLookbackDays:         rc.VolLookbackDays,
	}
	for name, v := range overrides {
		switch name {
		case "rate_lookback_months":
			c.RateLookbackMonths = int(v)
		case "trend_lookback_months":
			c.TrendLookbackMonths = int(v)
		case "vol_window_months":
			c.VolWindowMonths = int(v)
		case "rate_threshold":
			c.RateThreshold = v
		case "trend_threshold":
			c.TrendThreshold = v
		case "vol_threshold":
			c.VolThreshold = v
		default:
			return nil, domain.Configf("unknown regime parameter %q", name)
		}
	}
	return signal.NewRegimeLongShort(c, macro.yield, macro.trend, macro.vol)
}

func buildRotation(rc config.RotationConfig, overrides map[string]float64) (signal.Generator, error) {
	skip := 1
	if rc.SkipMonths != nil {
		skip = *rc.SkipMonths
	}
	c := signal.RotationConfig{
		LookbackMonths:    rc.LookbackMonths,
		SkipMonths:        skip,
		TopN:              rc.TopN,
		VolLookbackDays:   rc.VolLookbackDays,
		TargetVolAnnual:   rc.TargetVolAnnual,
		DefensiveTicker:   rc.DefensiveTicker,
		TrendFilterTicker: rc.TrendFilterTicker,
		TrendFilterMonths: rc.TrendFilterMonths,
		TSMomentumGate:    rc.TSMomentumGate,
		TSLookbackMonths:  rc.TSLookbackMonths,
	}
	for name, v := range overrides {
		switch name {
		case "lookback_months":
			c.LookbackMonths = int(v)
		case "skip_months":
			c.SkipMonths = int(v)
		case "top_n":
			c.TopN = int(v)
		case "vol_lookback_days":
			c.VolLookbackDays = int(v)
		case "target_vol_annual":
			c.TargetVolAnnual = v
		default:
			return nil, domain.Configf("unknown rotation parameter %q", name)
		}
	}
	return signal.NewMomentumRotation(c)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
