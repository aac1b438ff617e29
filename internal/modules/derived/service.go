package derived

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/domain"
)

// BasePriceProvider resolves the latest price of a non-derived ticker
type BasePriceProvider interface {
	LatestPrice(ctx context.Context, ticker string) (domain.PriceResult, error)
}

// HistoryProvider serves stored daily close prices keyed by date
type HistoryProvider interface {
	CloseSeries(ticker string) (map[string]float64, error)
}

// HistoricalPoint is one date of a derived ticker's computed history.
// Value is nil on dates where the formula could not be computed.
type HistoricalPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Service evaluates derived ticker formulas. Underlyings may themselves
// be derived; resolution recurses with cycle detection.
type Service struct {
	repo    *Repository
	prices  BasePriceProvider
	history HistoryProvider
	log     zerolog.Logger
}

// NewService creates a derived ticker service
func NewService(repo *Repository, prices BasePriceProvider, history HistoryProvider, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		prices:  prices,
		history: history,
		log:     log.With().Str("service", "derived").Logger(),
	}
}

// Create validates and stores a derived ticker definition. The formula
// must parse, and it must not create a reference cycle through existing
// definitions.
func (s *Service) Create(dt domain.DerivedTicker) error {
	if dt.Ticker == "" {
		return ErrFormulaSyntax{Detail: "ticker must not be empty"}
	}

	expr, err := Parse(dt.Formula)
	if err != nil {
		return err
	}

	if err := s.checkNoCycle(dt.Ticker, expr.Variables()); err != nil {
		return err
	}

	if err := s.repo.Upsert(dt); err != nil {
		return err
	}

	s.log.Info().Str("ticker", dt.Ticker).Str("formula", dt.Formula).Msg("Derived ticker stored")
	return nil
}

// checkNoCycle walks the dependency graph of existing definitions from
// the new formula's variables and fails if it can reach the new ticker
func (s *Service) checkNoCycle(ticker string, deps []string) error {
	visited := make(map[string]bool)
	queue := append([]string{}, deps...)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == ticker {
			return ErrCircularReference{Ticker: ticker}
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		dt, err := s.repo.Get(current)
		if err != nil {
			return err
		}
		if dt == nil {
			continue
		}
		vars, err := ExtractTickers(dt.Formula)
		if err != nil {
			// A stored formula that no longer parses cannot be walked;
			// evaluation will surface the error to the caller.
			continue
		}
		queue = append(queue, vars...)
	}
	return nil
}

// Get returns one definition, nil when unknown
func (s *Service) Get(ticker string) (*domain.DerivedTicker, error) {
	return s.repo.Get(ticker)
}

// List returns all definitions
func (s *Service) List() ([]domain.DerivedTicker, error) {
	return s.repo.List()
}

// Delete removes a definition, reporting whether it existed
func (s *Service) Delete(ticker string) (bool, error) {
	return s.repo.Delete(ticker)
}

// LatestPrice computes the current value of a derived ticker
func (s *Service) LatestPrice(ctx context.Context, ticker string) (float64, error) {
	return s.resolveLatest(ctx, ticker, map[string]bool{})
}

// resolveLatest walks the formula tree. Each underlying gets its own
// copy of the visited set, so a diamond-shaped dependency (two siblings
// sharing an underlying) is legal while a true cycle is not.
func (s *Service) resolveLatest(ctx context.Context, ticker string, visited map[string]bool) (float64, error) {
	if visited[ticker] {
		return 0, ErrCircularReference{Ticker: ticker}
	}

	dt, err := s.repo.Get(ticker)
	if err != nil {
		return 0, err
	}
	if dt == nil {
		result, err := s.prices.LatestPrice(ctx, ticker)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve underlying %s: %w", ticker, err)
		}
		if !result.IsFound() {
			return 0, ErrMissingUnderlying{Ticker: ticker}
		}
		return result.Price, nil
	}

	expr, err := Parse(dt.Formula)
	if err != nil {
		return 0, err
	}

	values := make(map[string]float64)
	for _, name := range expr.Variables() {
		branch := copyVisited(visited)
		branch[ticker] = true

		value, err := s.resolveLatest(ctx, name, branch)
		if err != nil {
			return 0, err
		}
		values[name] = value
	}

	return expr.Eval(values)
}

func copyVisited(visited map[string]bool) map[string]bool {
	branch := make(map[string]bool, len(visited)+1)
	for k, v := range visited {
		branch[k] = v
	}
	return branch
}

// HistoricalSeries computes a derived ticker's daily history over the
// dates where every underlying has data. Dates where the formula fails
// (division by zero on that date's values) carry a nil value instead of
// dropping out.
func (s *Service) HistoricalSeries(ctx context.Context, ticker string) ([]HistoricalPoint, error) {
	dt, err := s.repo.Get(ticker)
	if err != nil {
		return nil, err
	}
	if dt == nil {
		// A base ticker with no stored bars is an empty series, not an
		// error; only an empty series under a derived formula is.
		series, err := s.history.CloseSeries(ticker)
		if err != nil {
			return nil, err
		}
		return sortedPoints(seriesToPoints(series)), nil
	}

	points, err := s.evaluateSeries(ctx, dt, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return sortedPoints(points), nil
}

func (s *Service) evaluateSeries(ctx context.Context, dt *domain.DerivedTicker, visited map[string]bool) (map[string]*float64, error) {
	expr, err := Parse(dt.Formula)
	if err != nil {
		return nil, err
	}

	underlying := make(map[string]map[string]float64)
	for _, name := range expr.Variables() {
		branch := copyVisited(visited)
		branch[dt.Ticker] = true

		series, err := s.resolveSeries(ctx, name, branch)
		if err != nil {
			return nil, err
		}
		underlying[name] = series
	}

	dates := intersectDates(underlying)
	points := make(map[string]*float64, len(dates))
	for _, date := range dates {
		values := make(map[string]float64, len(underlying))
		for name, series := range underlying {
			values[name] = series[date]
		}
		value, err := expr.Eval(values)
		if err != nil {
			points[date] = nil
			continue
		}
		v := value
		points[date] = &v
	}
	return points, nil
}

// resolveSeries returns only the dates that carry a computed value;
// dates where a nested formula failed do not propagate upward
func (s *Service) resolveSeries(ctx context.Context, ticker string, visited map[string]bool) (map[string]float64, error) {
	if visited[ticker] {
		return nil, ErrCircularReference{Ticker: ticker}
	}

	dt, err := s.repo.Get(ticker)
	if err != nil {
		return nil, err
	}
	if dt == nil {
		series, err := s.history.CloseSeries(ticker)
		if err != nil {
			return nil, err
		}
		if len(series) == 0 {
			return nil, ErrMissingUnderlying{Ticker: ticker}
		}
		return series, nil
	}

	points, err := s.evaluateSeries(ctx, dt, visited)
	if err != nil {
		return nil, err
	}

	series := make(map[string]float64, len(points))
	for date, value := range points {
		if value != nil {
			series[date] = *value
		}
	}
	return series, nil
}

func intersectDates(underlying map[string]map[string]float64) []string {
	var dates []string
	first := true
	for _, series := range underlying {
		if first {
			for date := range series {
				dates = append(dates, date)
			}
			first = false
			continue
		}
		kept := dates[:0]
		for _, date := range dates {
			if _, ok := series[date]; ok {
				kept = append(kept, date)
			}
		}
		dates = kept
	}
	return dates
}

func seriesToPoints(series map[string]float64) map[string]*float64 {
	points := make(map[string]*float64, len(series))
	for date, value := range series {
		v := value
		points[date] = &v
	}
	return points
}

func sortedPoints(points map[string]*float64) []HistoricalPoint {
	result := make([]HistoricalPoint, 0, len(points))
	for date, value := range points {
		result = append(result, HistoricalPoint{Date: date, Value: value})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result
}
