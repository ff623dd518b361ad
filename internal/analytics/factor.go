package analytics

// factor.go — atribución factorial por mínimos cuadrados ordinarios.
//
// Los retornos diarios de la estrategia se capitalizan a mensuales, se
// cruzan con los retornos en exceso de los factores por (año, mes), y se
// regresa el exceso de la estrategia contra el set de factores. El alpha
// reportado es el intercepto mensual anualizado (×12).

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/alejandrodnm/etflab/internal/domain"
)

// FactorModel es el set de factores mensuales más la tasa libre de riesgo.
// Lo suministra el provider; el core lo trata como solo lectura.
type FactorModel struct {
	Names    []string                 // orden de reporte de los factores
	Factors  map[string]domain.Series // retornos en exceso por factor
	RiskFree domain.Series            // misma forma que los factores
}

// Attribution es el resultado de la regresión factorial.
type Attribution struct {
	AlphaAnnual float64 // intercepto mensual × 12
	AlphaTStat  float64
	AlphaStdErr float64

	Betas       map[string]float64
	BetaTStats  map[string]float64
	BetaStdErrs map[string]float64

	R2  float64
	Obs int
}

// Attribute regresa el exceso mensual de la estrategia contra los factores.
// Con menos de minObs meses solapados falla con InsufficientDataError en
// vez de devolver un ajuste inestable en silencio.
func Attribute(daily domain.Series, model FactorModel, minObs int) (*Attribution, error) {
	if len(model.Names) == 0 {
		return nil, domain.Configf("factor model has no factors")
	}
	for _, name := range model.Names {
		if _, ok := model.Factors[name]; !ok {
			return nil, domain.Configf("factor %q missing from model series", name)
		}
	}

	monthly := compoundMonthly(daily)

	// Cruce por (año, mes): solo meses con estrategia, RF y todos los
	// factores presentes entran en la regresión.
	rf := indexByMonth(model.RiskFree)
	factorIdx := make(map[string]map[monthKey]float64, len(model.Names))
	for _, name := range model.Names {
		factorIdx[name] = indexByMonth(model.Factors[name])
	}

	var y []float64
	var rows [][]float64
	for i, d := range monthly.Dates {
		key := monthKey{d.Year(), d.Month()}
		rfV, ok := rf[key]
		if !ok {
			continue
		}
		row := make([]float64, len(model.Names))
		complete := true
		for j, name := range model.Names {
			v, ok := factorIdx[name][key]
			if !ok {
				complete = false
				break
			}
			row[j] = v
		}
		if !complete {
			continue
		}
		y = append(y, monthly.Values[i]-rfV)
		rows = append(rows, row)
	}

	n := len(y)
	k := len(model.Names)
	if n < minObs {
		return nil, &domain.InsufficientDataError{What: "factor regression", Needed: minObs, Got: n}
	}
	dof := n - k - 1
	if dof <= 0 {
		return nil, &domain.InsufficientDataError{What: "factor regression dof", Needed: k + 2, Got: n}
	}

	// Matriz de diseño con columna constante delante.
	x := mat.NewDense(n, k+1, nil)
	yVec := mat.NewVecDense(n, y)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1.0)
		for j := 0; j < k; j++ {
			x.Set(i, j+1, rows[i][j])
		}
	}

	var qr mat.QR
	qr.Factorize(x)
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, yVec); err != nil {
		return nil, fmt.Errorf("analytics.Attribute: ols solve: %w", err)
	}

	// Residuos, R² y covarianza de los coeficientes: σ²·(XᵀX)⁻¹.
	var fitted mat.VecDense
	fitted.MulVec(x, &coef)
	rss := 0.0
	meanY := 0.0
	for i := 0; i < n; i++ {
		meanY += y[i]
	}
	meanY /= float64(n)
	tss := 0.0
	for i := 0; i < n; i++ {
		res := y[i] - fitted.AtVec(i)
		rss += res * res
		dev := y[i] - meanY
		tss += dev * dev
	}
	sigma2 := rss / float64(dof)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("analytics.Attribute: singular design matrix: %w", err)
	}

	stderr := func(j int) float64 {
		return math.Sqrt(sigma2 * xtxInv.At(j, j))
	}
	tstat := func(b, se float64) float64 {
		if se == 0 {
			return math.NaN()
		}
		return b / se
	}

	out := &Attribution{
		AlphaAnnual: coef.AtVec(0) * 12,
		AlphaStdErr: stderr(0),
		Betas:       make(map[string]float64, k),
		BetaTStats:  make(map[string]float64, k),
		BetaStdErrs: make(map[string]float64, k),
		Obs:         n,
	}
	out.AlphaTStat = tstat(coef.AtVec(0), out.AlphaStdErr)
	for j, name := range model.Names {
		b := coef.AtVec(j + 1)
		se := stderr(j + 1)
		out.Betas[name] = b
		out.BetaStdErrs[name] = se
		out.BetaTStats[name] = tstat(b, se)
	}
	if tss > 0 {
		out.R2 = 1 - rss/tss
	} else {
		out.R2 = math.NaN()
	}
	return out, nil
}

// monthKey identifica un mes natural para el cruce estrategia/factores.
type monthKey struct {
	year  int
	month time.Month
}

// compoundMonthly capitaliza retornos diarios a mensuales, etiquetados con
// la última fecha diaria de cada mes.
func compoundMonthly(daily domain.Series) domain.Series {
	var out domain.Series
	if daily.Len() == 0 {
		return out
	}
	acc := 1.0
	for i, d := range daily.Dates {
		acc *= 1 + daily.Values[i]
		lastOfMonth := i == daily.Len()-1 ||
			daily.Dates[i+1].Month() != d.Month() ||
			daily.Dates[i+1].Year() != d.Year()
		if lastOfMonth {
			out.Dates = append(out.Dates, d)
			out.Values = append(out.Values, acc-1)
			acc = 1.0
		}
	}
	return out
}

// indexByMonth indexa una serie mensual por (año, mes).
func indexByMonth(s domain.Series) map[monthKey]float64 {
	out := make(map[monthKey]float64, s.Len())
	for i, d := range s.Dates {
		out[monthKey{d.Year(), d.Month()}] = s.Values[i]
	}
	return out
}
