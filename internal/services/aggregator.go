package services

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"repair-dashboard/internal/models"
	"repair-dashboard/internal/observability"
)

const (
	bucket1M  = 1_000_000
	bucket5M  = 5_000_000
	bucket10M = 10_000_000

	fallbackRepairType = "Other"
	fallbackLabel      = "N/A"
)

// Limits caps the ranked lists of a summary. Workshops are never truncated.
type Limits struct {
	RepairTypes     int
	VehiclesByCost  int
	VehiclesByCount int
}

func DefaultLimits() Limits {
	return Limits{
		RepairTypes:     10,
		VehiclesByCost:  15,
		VehiclesByCount: 15,
	}
}

// Fingerprint identifies the record set a cached summary was built from.
// The default fingerprint only looks at the length and the boundary repair
// numbers, so two different sets sharing those three values share a cache
// entry. Checksum is filled only when content fingerprinting is enabled.
type Fingerprint struct {
	Count    int
	FirstID  string
	LastID   string
	Checksum uint64
}

func FingerprintOf(records []models.RepairRecord) Fingerprint {
	fp := Fingerprint{Count: len(records)}
	if len(records) > 0 {
		fp.FirstID = records[0].RepairNo
		fp.LastID = records[len(records)-1].RepairNo
	}
	return fp
}

// ContentFingerprintOf extends FingerprintOf with an FNV-64a checksum over
// every field the aggregator reads.
func ContentFingerprintOf(records []models.RepairRecord) Fingerprint {
	fp := FingerprintOf(records)
	h := fnv.New64a()
	for i := range records {
		r := &records[i]
		for _, field := range []string{
			r.RepairNo, string(r.CostAfterTax), string(r.LaborCost), string(r.MaterialPayment),
			string(r.RequestedAt), r.Vehicle, r.RepairType, r.Workshop, string(r.Rejected),
		} {
			h.Write([]byte(field))
			h.Write([]byte{0})
		}
	}
	fp.Checksum = h.Sum64()
	return fp
}

type AggregatorOption func(*Aggregator)

func WithLimits(l Limits) AggregatorOption {
	return func(a *Aggregator) {
		a.limits = l
	}
}

// WithContentFingerprint makes cache validity depend on record content
// instead of length and boundary ids only.
func WithContentFingerprint() AggregatorOption {
	return func(a *Aggregator) {
		a.fingerprintFn = ContentFingerprintOf
	}
}

func WithAggregatorLogger(l *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// Aggregator turns record sets into Statistics and remembers the last result.
// There is exactly one cache slot: a request with a different fingerprint
// replaces it.
type Aggregator struct {
	mu            sync.Mutex
	limits        Limits
	fingerprintFn func([]models.RepairRecord) Fingerprint
	cached        *models.Statistics
	fingerprint   Fingerprint
	computations  atomic.Int64
	logger        *slog.Logger
}

func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		limits:        DefaultLimits(),
		fingerprintFn: FingerprintOf,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compute returns the summary for records, reusing the cached one when the
// fingerprint matches. The returned value must not be modified.
func (a *Aggregator) Compute(records []models.RepairRecord) *models.Statistics {
	fp := a.fingerprintFn(records)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && a.fingerprint == fp {
		observability.StatisticsRequestsTotal.WithLabelValues("hit").Inc()
		return a.cached
	}
	observability.StatisticsRequestsTotal.WithLabelValues("miss").Inc()

	start := time.Now()
	stats := Aggregate(records, a.limits)
	duration := time.Since(start)

	a.cached = stats
	a.fingerprint = fp
	a.computations.Add(1)

	observability.StatisticsComputeDuration.Observe(duration.Seconds())
	observability.StatisticsRecords.Set(float64(stats.TotalRecords))
	a.logger.Info("statistics computed",
		"records", stats.TotalRecords,
		"duration", duration,
	)

	return stats
}

// ClearCache drops the cached summary.
func (a *Aggregator) ClearCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cached = nil
	a.fingerprint = Fingerprint{}
}

// Computations reports how many times a summary was actually computed.
func (a *Aggregator) Computations() int64 {
	return a.computations.Load()
}

func (a *Aggregator) Limits() Limits {
	return a.limits
}

// Aggregate computes a summary in a single pass without touching any cache.
func Aggregate(records []models.RepairRecord, limits Limits) *models.Statistics {
	var (
		totalCost, totalLabor, totalMaterial float64
		minCost                              = math.Inf(1)
		maxCost                              float64
		rejected                             int
		dist                                 models.CostDistribution
	)

	vehicles := newGroupIndex()
	repairTypes := newGroupIndex()
	workshops := newGroupIndex()
	months := newGroupIndex()
	quarters := newGroupIndex()

	for i := range records {
		r := &records[i]

		cost := ParseCost(r.CostAfterTax)
		totalCost += cost
		totalLabor += ParseCost(r.LaborCost)
		totalMaterial += ParseCost(r.MaterialPayment)
		minCost = math.Min(minCost, cost)
		maxCost = math.Max(maxCost, cost)

		if IsRejected(r.Rejected) {
			rejected++
		}

		switch {
		case cost < bucket1M:
			dist.Under1M++
		case cost < bucket5M:
			dist.From1Mto5M++
		case cost < bucket10M:
			dist.From5Mto10M++
		default:
			dist.Over10M++
		}

		vehicles.add(orDefault(r.Vehicle, fallbackLabel), cost)
		repairTypes.add(orDefault(r.RepairType, fallbackRepairType), cost)
		workshops.add(orDefault(r.Workshop, fallbackLabel), cost)

		if _, month, year, ok := MatchRequestDate(r.RequestedAt); ok {
			months.add(fmt.Sprintf("%02d/%d", month, year), cost)
			quarters.add(fmt.Sprintf("Q%d/%d", (month+2)/3, year), cost)
		}
	}

	count := len(records)
	if count == 0 {
		minCost = 0
	}

	stats := &models.Statistics{
		TotalRecords:      count,
		TotalCost:         totalCost,
		TotalLaborCost:    totalLabor,
		TotalMaterialCost: totalMaterial,
		AvgCost:           ratio(totalCost, float64(count)),
		MinCost:           minCost,
		MaxCost:           maxCost,
		UniqueVehicles:    vehicles.size(),
		RejectedCount:     rejected,
		RejectedRate:      percent(float64(rejected), float64(count)),
		LaborVsMaterial: models.LaborMaterialSplit{
			Labor:        totalLabor,
			Material:     totalMaterial,
			LaborPercent: percent(totalLabor, totalCost),
		},
		CostDistribution: dist,
	}

	stats.ByMonth = periodList(months.sorted(compareMonthKeys))
	stats.ByQuarter = periodList(quarters.sorted(func(a, b group) int {
		return strings.Compare(a.key, b.key)
	}))

	stats.ByRepairType = make([]models.CategoryShare, 0)
	for _, g := range truncate(repairTypes.sorted(byCountDesc), limits.RepairTypes) {
		stats.ByRepairType = append(stats.ByRepairType, models.CategoryShare{
			Name:       g.key,
			Count:      g.count,
			Cost:       g.cost,
			Percentage: percent(float64(g.count), float64(count)),
		})
	}

	stats.ByWorkshop = make([]models.CategoryShare, 0, workshops.size())
	for _, g := range workshops.sorted(byCostDesc) {
		stats.ByWorkshop = append(stats.ByWorkshop, models.CategoryShare{
			Name:       g.key,
			Count:      g.count,
			Cost:       g.cost,
			Percentage: percent(g.cost, totalCost),
		})
	}

	stats.TopVehiclesByCost = vehicleList(truncate(vehicles.sorted(byCostDesc), limits.VehiclesByCost))
	stats.TopVehiclesByCount = vehicleList(truncate(vehicles.sorted(byCountDesc), limits.VehiclesByCount))

	return stats
}

// group is a (count, cost) aggregate for one key.
type group struct {
	key   string
	count int
	cost  float64
}

// groupIndex keeps groups in first-seen order so stable sorts break ties by
// first occurrence.
type groupIndex struct {
	index  map[string]int
	groups []group
}

func newGroupIndex() *groupIndex {
	return &groupIndex{index: make(map[string]int)}
}

func (g *groupIndex) add(key string, cost float64) {
	i, ok := g.index[key]
	if !ok {
		i = len(g.groups)
		g.index[key] = i
		g.groups = append(g.groups, group{key: key})
	}
	g.groups[i].count++
	g.groups[i].cost += cost
}

func (g *groupIndex) size() int {
	return len(g.groups)
}

func (g *groupIndex) sorted(cmp func(a, b group) int) []group {
	out := slices.Clone(g.groups)
	slices.SortStableFunc(out, cmp)
	return out
}

func byCountDesc(a, b group) int {
	return b.count - a.count
}

func byCostDesc(a, b group) int {
	switch {
	case a.cost > b.cost:
		return -1
	case a.cost < b.cost:
		return 1
	}
	return 0
}

// compareMonthKeys orders "MM/YYYY" keys by year, then month.
func compareMonthKeys(a, b group) int {
	ma, ya := splitMonthKey(a.key)
	mb, yb := splitMonthKey(b.key)
	if ya != yb {
		return ya - yb
	}
	return ma - mb
}

func splitMonthKey(key string) (month, year int) {
	m, y, _ := strings.Cut(key, "/")
	month, _ = strconv.Atoi(m)
	year, _ = strconv.Atoi(y)
	return month, year
}

func truncate(groups []group, n int) []group {
	if n >= 0 && len(groups) > n {
		return groups[:n]
	}
	return groups
}

func periodList(groups []group) []models.PeriodCost {
	out := make([]models.PeriodCost, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.PeriodCost{Period: g.key, Count: g.count, Cost: g.cost})
	}
	return out
}

func vehicleList(groups []group) []models.VehicleCost {
	out := make([]models.VehicleCost, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.VehicleCost{Vehicle: g.key, Count: g.count, Cost: g.cost})
	}
	return out
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func percent(part, whole float64) float64 {
	return ratio(part, whole) * 100
}
