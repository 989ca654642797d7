package domain

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Operator is a statistical operation token accepted by the preprocessors.
type Operator string

// Supported operators.
const (
	OpMean     Operator = "mean"
	OpMedian   Operator = "median"
	OpStdDev   Operator = "std_dev"
	OpVariance Operator = "variance"
	OpMin      Operator = "min"
	OpMax      Operator = "max"
)

// Aggregator reduces a group of values to one value.
type Aggregator interface {
	// Name returns the aggregator name used in cell methods.
	Name() string
	// Weighted reports whether Aggregate honours weights.
	Weighted() bool
	// Aggregate reduces values. weights is nil or has the same length as values.
	Aggregate(values, weights []float64) float64
}

type aggregator struct {
	name     string
	weighted bool
	fn       func(x, w []float64) float64
}

func (a aggregator) Name() string   { return a.name }
func (a aggregator) Weighted() bool { return a.weighted }

func (a aggregator) Aggregate(values, weights []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	if !a.weighted {
		weights = nil
	}
	return a.fn(values, weights)
}

var (
	// MeanAggregator is the (optionally weighted) arithmetic mean.
	MeanAggregator Aggregator = aggregator{name: "mean", weighted: true, fn: stat.Mean}
	// MedianAggregator is the unweighted median.
	MedianAggregator Aggregator = aggregator{name: "median", fn: median}
	// StdDevAggregator is the unweighted sample standard deviation.
	StdDevAggregator Aggregator = aggregator{name: "standard_deviation", fn: stat.StdDev}
	// VarianceAggregator is the unweighted sample variance.
	VarianceAggregator Aggregator = aggregator{name: "variance", fn: stat.Variance}
	// MinAggregator is the minimum.
	MinAggregator Aggregator = aggregator{name: "minimum", fn: func(x, _ []float64) float64 { return floats.Min(x) }}
	// MaxAggregator is the maximum.
	MaxAggregator Aggregator = aggregator{name: "maximum", fn: func(x, _ []float64) float64 { return floats.Max(x) }}
	// SumAggregator is the sum. It is not reachable through an operator token.
	SumAggregator Aggregator = aggregator{name: "sum", fn: func(x, _ []float64) float64 { return floats.Sum(x) }}
)

// operatorTable maps every accepted token to exactly one aggregation.
var operatorTable = map[Operator]Aggregator{
	OpMean:     MeanAggregator,
	OpMedian:   MedianAggregator,
	OpStdDev:   StdDevAggregator,
	OpVariance: VarianceAggregator,
	OpMin:      MinAggregator,
	OpMax:      MaxAggregator,
}

// Operators returns the accepted operator tokens in a stable order.
func Operators() []Operator {
	return []Operator{OpMean, OpMedian, OpStdDev, OpVariance, OpMin, OpMax}
}

// ParseOperator validates a token case-insensitively.
func ParseOperator(token string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(token)))
	if _, ok := operatorTable[op]; !ok {
		return "", &InvalidOperatorError{Token: token}
	}
	return op, nil
}

// Aggregator returns the aggregation primitive for the operator.
func (op Operator) Aggregator() Aggregator {
	return operatorTable[op]
}

// Weighted reports whether area/volume weights apply to this operator.
// Only the mean is weighted; weighted median, standard deviation and
// variance are not implemented.
func (op Operator) Weighted() bool {
	agg, ok := operatorTable[op]
	return ok && agg.Weighted()
}

func median(x, _ []float64) float64 {
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
