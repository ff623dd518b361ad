package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del laboratorio de backtests.
type Config struct {
	Universe  UniverseConfig  `yaml:"universe"`
	Regime    RegimeConfig    `yaml:"regime"`
	Rotation  RotationConfig  `yaml:"rotation"`
	Costs     CostsConfig     `yaml:"costs"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Data      DataConfig      `yaml:"data"`
	Factors   FactorsConfig   `yaml:"factors"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// UniverseConfig define los instrumentos y el rango del estudio.
type UniverseConfig struct {
	Tickers   []string `yaml:"tickers"`
	Benchmark string   `yaml:"benchmark"`
	Start     string   `yaml:"start"` // YYYY-MM-DD
	End       string   `yaml:"end"`   // YYYY-MM-DD; vacío = hoy
}

// RegimeConfig parametriza la estrategia long/short por régimen macro.
type RegimeConfig struct {
	LongLeg  string `yaml:"long_leg"`
	ShortLeg string `yaml:"short_leg"`

	YieldSeries string `yaml:"yield_series"` // id FRED del yield
	VolSeries   string `yaml:"vol_series"`   // id FRED del índice de vol
	TrendTicker string `yaml:"trend_ticker"` // proxy de tendencia de mercado

	RateLookbackMonths  int     `yaml:"rate_lookback_months"`
	TrendLookbackMonths int     `yaml:"trend_lookback_months"`
	VolWindowMonths     int     `yaml:"vol_window_months"`
	RateThreshold       float64 `yaml:"rate_threshold"`
	TrendThreshold      float64 `yaml:"trend_threshold"`
	VolThreshold        float64 `yaml:"vol_threshold"`

	RateEnabled  bool `yaml:"rate_enabled"`
	TrendEnabled bool `yaml:"trend_enabled"`
	VolEnabled   bool `yaml:"vol_enabled"`

	RiskOffMode string `yaml:"risk_off_mode"` // flat | defensive

	RiskBalanced            bool    `yaml:"risk_balanced"`
	TargetGross             float64 `yaml:"target_gross"`
	SpreadMomLookbackMonths int     `yaml:"spread_mom_lookback_months"`
	SpreadMomThreshold      float64 `yaml:"spread_mom_threshold"`
	VolLookbackDays         int     `yaml:"vol_lookback_days"`
}

// RotationConfig parametriza la rotación por momentum.
type RotationConfig struct {
	LookbackMonths  int     `yaml:"lookback_months"`
	SkipMonths      *int    `yaml:"skip_months"` // ausente = 1 (convención 12-1); 0 desactiva el salto
	TopN            int     `yaml:"top_n"`
	VolLookbackDays int     `yaml:"vol_lookback_days"`
	TargetVolAnnual float64 `yaml:"target_vol_annual"`
	DefensiveTicker string  `yaml:"defensive_ticker"`

	TrendFilterTicker string `yaml:"trend_filter_ticker"`
	TrendFilterMonths int    `yaml:"trend_filter_months"`
	TSMomentumGate    bool   `yaml:"ts_momentum_gate"`
	TSLookbackMonths  int    `yaml:"ts_lookback_months"`
}

// CostsConfig parametriza las fricciones de la simulación.
type CostsConfig struct {
	TransactionCostBps float64 `yaml:"transaction_cost_bps"`
	BorrowCostAnnual   float64 `yaml:"borrow_cost_annual"`
	CashRateAnnual     float64 `yaml:"cash_rate_annual"`
	RiskFreeAnnual     float64 `yaml:"risk_free_annual"` // para Sharpe/Sortino
}

// SweepConfig define el split train/test y las rejillas del barrido de
// robustez, una por estrategia. El flag -split tiene prioridad sobre
// split_date.
type SweepConfig struct {
	SplitDate string               `yaml:"split_date"` // YYYY-MM-DD; vacío = sin split
	Regime    map[string][]float64 `yaml:"regime"`
	Rotation  map[string][]float64 `yaml:"rotation"`
}

// DataConfig controla de dónde vienen los datos.
type DataConfig struct {
	CacheDir   string `yaml:"cache_dir"`
	OfflineDir string `yaml:"offline_dir"` // modo offline: CSVs locales
	FREDAPIKey string `yaml:"fred_api_key"`
}

// FactorsConfig apunta al fichero de factores mensuales.
type FactorsConfig struct {
	CSVPath string   `yaml:"csv_path"`
	Names   []string `yaml:"names"`
	MinObs  int      `yaml:"min_obs"`
}

// StorageConfig controla dónde se persisten los resultados.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// DateRange devuelve el rango del estudio como fechas parseadas.
func (c *Config) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", c.Universe.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("config.DateRange: start: %w", err)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if c.Universe.End != "" {
		end, err = time.Parse("2006-01-02", c.Universe.End)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("config.DateRange: end: %w", err)
		}
	}
	return start, end, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		cfg.Data.FREDAPIKey = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los defaults reproducen el estudio sectorial biotech/pharma de referencia.
func setDefaults(cfg *Config) {
	if len(cfg.Universe.Tickers) == 0 {
		cfg.Universe.Tickers = []string{"XBI", "XPH", "XLV", "IBB", "SPY"}
	}
	if cfg.Universe.Benchmark == "" {
		cfg.Universe.Benchmark = "SPY"
	}
	if cfg.Universe.Start == "" {
		cfg.Universe.Start = "2007-01-01"
	}

	if cfg.Regime.LongLeg == "" {
		cfg.Regime.LongLeg = "XBI"
	}
	if cfg.Regime.ShortLeg == "" {
		cfg.Regime.ShortLeg = "XPH"
	}
	if cfg.Regime.YieldSeries == "" {
		cfg.Regime.YieldSeries = "DGS10"
	}
	if cfg.Regime.VolSeries == "" {
		cfg.Regime.VolSeries = "VIXCLS"
	}
	if cfg.Regime.TrendTicker == "" {
		cfg.Regime.TrendTicker = "SPY"
	}
	if cfg.Regime.RateLookbackMonths <= 0 {
		cfg.Regime.RateLookbackMonths = 6
	}
	if cfg.Regime.TrendLookbackMonths <= 0 {
		cfg.Regime.TrendLookbackMonths = 6
	}
	if cfg.Regime.VolWindowMonths <= 0 {
		cfg.Regime.VolWindowMonths = 3
	}
	if cfg.Regime.VolThreshold <= 0 {
		cfg.Regime.VolThreshold = 25
	}
	if cfg.Regime.RiskOffMode == "" {
		cfg.Regime.RiskOffMode = "flat"
	}
	if cfg.Regime.TargetGross <= 0 {
		cfg.Regime.TargetGross = 2.0
	}
	if cfg.Regime.SpreadMomLookbackMonths <= 0 {
		cfg.Regime.SpreadMomLookbackMonths = 6
	}
	if cfg.Regime.VolLookbackDays <= 0 {
		cfg.Regime.VolLookbackDays = 63
	}

	if cfg.Rotation.LookbackMonths <= 0 {
		cfg.Rotation.LookbackMonths = 12
	}
	if cfg.Rotation.SkipMonths == nil {
		one := 1
		cfg.Rotation.SkipMonths = &one
	}
	if cfg.Rotation.TopN <= 0 {
		cfg.Rotation.TopN = 2
	}
	if cfg.Rotation.VolLookbackDays <= 0 {
		cfg.Rotation.VolLookbackDays = 63
	}

	if cfg.Costs.TransactionCostBps <= 0 {
		cfg.Costs.TransactionCostBps = 10
	}

	// Rejillas por defecto: los parámetros a los que cada estrategia es
	// más sensible.
	if len(cfg.Sweep.Regime) == 0 {
		cfg.Sweep.Regime = map[string][]float64{
			"rate_lookback_months": {3, 6, 9},
			"vol_window_months":    {1, 3, 6},
			"vol_threshold":        {20, 25, 30},
		}
	}
	if len(cfg.Sweep.Rotation) == 0 {
		cfg.Sweep.Rotation = map[string][]float64{
			"lookback_months": {6, 9, 12},
			"top_n":           {1, 2, 3},
		}
	}

	if cfg.Data.CacheDir == "" {
		cfg.Data.CacheDir = ".cache"
	}

	if len(cfg.Factors.Names) == 0 {
		cfg.Factors.Names = []string{"Mkt-RF", "SMB", "HML"}
	}
	if cfg.Factors.MinObs <= 0 {
		cfg.Factors.MinObs = 24
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "etflab.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
