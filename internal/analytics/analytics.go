// Package analytics computes derived reports over a ledger snapshot. Every
// function is stateless and recomputes from the raw stored fields on each
// call; rounding only happens at the edge of a result, never on data that
// feeds another computation.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/estaciona/parkops-server/internal/ledger"
	"github.com/estaciona/parkops-server/internal/models"
)

// occupancyHorizonDays is the window used for the average occupancy rate
// and the spot efficiency ceiling.
const occupancyHorizonDays = 30

// dailyRevenueGoal is the daily revenue target used for goal progress.
const dailyRevenueGoal = 500.0

// Stats are the basic lot counters.
type Stats struct {
	TotalSpots     int     `json:"totalSpots"`
	OccupiedSpots  int     `json:"occupiedSpots"`
	AvailableSpots int     `json:"availableSpots"`
	TotalRevenue   float64 `json:"totalRevenue"`
}

// ComputeStats returns occupancy counts and total paid revenue.
func ComputeStats(snap ledger.Snapshot) Stats {
	occupied := 0
	for _, s := range snap.Spots {
		if s.Occupied {
			occupied++
		}
	}

	revenue := 0.0
	for _, t := range snap.Transactions {
		if t.Paid {
			revenue += t.Amount
		}
	}

	return Stats{
		TotalSpots:     len(snap.Spots),
		OccupiedSpots:  occupied,
		AvailableSpots: len(snap.Spots) - occupied,
		TotalRevenue:   revenue,
	}
}

// TodayTransactions returns the transactions whose entry falls on the same
// calendar day as now.
func TodayTransactions(snap ledger.Snapshot, now time.Time) []models.Transaction {
	out := make([]models.Transaction, 0)
	for _, t := range snap.Transactions {
		if sameDay(t.EntryTime, now) {
			out = append(out, t)
		}
	}
	return out
}

// Metrics are the aggregate performance figures of the whole ledger.
type Metrics struct {
	TotalRevenue         float64 `json:"totalRevenue"`
	TotalVehicles        int     `json:"totalVehicles"`
	AvgStayTime          float64 `json:"avgStayTime"`
	OccupancyRate        float64 `json:"occupancyRate"`
	AvgRevenuePerVehicle float64 `json:"avgRevenuePerVehicle"`
	PaidTransactions     int     `json:"paidTransactions"`
	PendingPayments      int     `json:"pendingPayments"`
}

// AdvancedMetrics aggregates revenue, stay time and occupancy over all
// transactions. The occupancy rate is measured against a 30 day horizon of
// spot-days.
func AdvancedMetrics(snap ledger.Snapshot) Metrics {
	totalRevenue := 0.0
	totalHours := 0
	paid := 0
	for _, t := range snap.Transactions {
		totalHours += t.Hours
		if t.Paid {
			paid++
			totalRevenue += t.Amount
		}
	}

	count := len(snap.Transactions)
	avgStay := 0.0
	if count > 0 {
		avgStay = round1(float64(totalHours) / float64(count))
	}

	occupancyRate := 0.0
	totalSpotDays := float64(len(snap.Spots) * occupancyHorizonDays)
	if totalSpotDays > 0 {
		occupiedSpotDays := float64(totalHours) / 24
		occupancyRate = round1(occupiedSpotDays / totalSpotDays * 100)
	}

	avgRevenue := 0.0
	if paid > 0 {
		avgRevenue = round2(totalRevenue / float64(paid))
	}

	return Metrics{
		TotalRevenue:         totalRevenue,
		TotalVehicles:        count,
		AvgStayTime:          avgStay,
		OccupancyRate:        occupancyRate,
		AvgRevenuePerVehicle: avgRevenue,
		PaidTransactions:     paid,
		PendingPayments:      count - paid,
	}
}

// DayRevenue is one calendar day of paid revenue.
type DayRevenue struct {
	Date   string  `json:"date"`
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// RevenueByDay buckets paid revenue by entry day over the trailing seven
// calendar days. It always returns exactly seven entries, oldest first,
// zero-filled when a day has no transactions.
func RevenueByDay(snap ledger.Snapshot, now time.Time) []DayRevenue {
	amounts := make(map[string]float64, 7)
	days := make([]DayRevenue, 0, 7)
	for i := 6; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		key := day.Format("2006-01-02")
		amounts[key] = 0
		days = append(days, DayRevenue{
			Date:  key,
			Label: day.Format("Mon Jan 2"),
		})
	}

	for _, t := range snap.Transactions {
		if !t.Paid {
			continue
		}
		key := t.EntryTime.Format("2006-01-02")
		if _, ok := amounts[key]; ok {
			amounts[key] += t.Amount
		}
	}

	for i := range days {
		days[i].Amount = math.Round(amounts[days[i].Date])
	}
	return days
}

// HourBucket is one hour of the day with its entry count and paid revenue.
type HourBucket struct {
	Hour    int     `json:"hour"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

// HourlyDistribution buckets all transactions by entry hour into 24 slots.
func HourlyDistribution(snap ledger.Snapshot) []HourBucket {
	buckets := make([]HourBucket, 24)
	for i := range buckets {
		buckets[i].Hour = i
	}

	for _, t := range snap.Transactions {
		hour := t.EntryTime.Hour()
		buckets[hour].Count++
		if t.Paid {
			buckets[hour].Revenue += t.Amount
		}
	}
	return buckets
}

// PeakHours returns the busiest hours by entry count, at most eight, with
// revenue rounded for display.
func PeakHours(snap ledger.Snapshot) []HourBucket {
	distribution := HourlyDistribution(snap)

	peaks := make([]HourBucket, 0, len(distribution))
	for _, b := range distribution {
		if b.Count > 0 {
			b.Revenue = math.Round(b.Revenue)
			peaks = append(peaks, b)
		}
	}

	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Count > peaks[j].Count
	})

	if len(peaks) > 8 {
		peaks = peaks[:8]
	}
	return peaks
}

// TypeShare is the usage share of one vehicle type.
type TypeShare struct {
	Type       models.VehicleType `json:"type"`
	Count      int                `json:"count"`
	Revenue    float64            `json:"revenue"`
	Percentage float64            `json:"percentage"`
}

// VehicleTypeDistribution reports count, paid revenue and percentage per
// vehicle type. Types without transactions are dropped.
func VehicleTypeDistribution(snap ledger.Snapshot) []TypeShare {
	order := []models.VehicleType{models.VehicleCar, models.VehicleMotorcycle, models.VehicleTruck}
	counts := make(map[models.VehicleType]int)
	revenue := make(map[models.VehicleType]float64)

	total := 0
	for _, t := range snap.Transactions {
		counts[t.VehicleType]++
		total++
		if t.Paid {
			revenue[t.VehicleType] += t.Amount
		}
	}

	out := make([]TypeShare, 0, len(order))
	for _, vt := range order {
		if counts[vt] == 0 {
			continue
		}
		out = append(out, TypeShare{
			Type:       vt,
			Count:      counts[vt],
			Revenue:    math.Round(revenue[vt]),
			Percentage: round1(float64(counts[vt]) / float64(total) * 100),
		})
	}
	return out
}

// SpotRanking is one spot's usage and revenue efficiency.
type SpotRanking struct {
	ID         int             `json:"id"`
	Number     int             `json:"number"`
	Type       models.SpotType `json:"type"`
	Efficiency float64         `json:"efficiency"`
	UsageCount int             `json:"usageCount"`
	Revenue    float64         `json:"revenue"`
	HourlyRate float64         `json:"hourlyRate"`
}

// SpotEfficiency ranks spots by paid revenue against the theoretical ceiling
// of the 30 day horizon at their hourly rate. Unused spots are dropped; at
// most ten entries are returned.
func SpotEfficiency(snap ledger.Snapshot) []SpotRanking {
	ranked := make([]SpotRanking, 0, len(snap.Spots))
	for _, spot := range snap.Spots {
		revenue := 0.0
		usage := 0
		for _, t := range snap.Transactions {
			if t.SpotID == spot.ID && t.Paid {
				revenue += t.Amount
				usage++
			}
		}
		if usage == 0 {
			continue
		}

		ceiling := 24 * occupancyHorizonDays * spot.HourlyRate
		efficiency := 0.0
		if ceiling > 0 {
			efficiency = round1(revenue / ceiling * 100)
		}

		ranked = append(ranked, SpotRanking{
			ID:         spot.ID,
			Number:     spot.Number,
			Type:       spot.Type,
			Efficiency: efficiency,
			UsageCount: usage,
			Revenue:    math.Round(revenue),
			HourlyRate: spot.HourlyRate,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Efficiency > ranked[j].Efficiency
	})

	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	return ranked
}

// TopSpots returns the five most efficient spots.
func TopSpots(snap ledger.Snapshot) []SpotRanking {
	ranked := SpotEfficiency(snap)
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	return ranked
}

// RevenueShare is a revenue amount with its share of the total.
type RevenueShare struct {
	Revenue    float64 `json:"revenue"`
	Percentage float64 `json:"percentage"`
}

// SpotTypeRevenue splits paid revenue between regular and premium spots.
type SpotTypeRevenue struct {
	Regular RevenueShare `json:"regular"`
	Premium RevenueShare `json:"premium"`
	Total   float64      `json:"total"`
}

// RevenueBySpotType sums paid revenue per spot type.
func RevenueBySpotType(snap ledger.Snapshot) SpotTypeRevenue {
	types := make(map[int]models.SpotType, len(snap.Spots))
	for _, s := range snap.Spots {
		types[s.ID] = s.Type
	}

	regular := 0.0
	premium := 0.0
	for _, t := range snap.Transactions {
		if !t.Paid {
			continue
		}
		switch types[t.SpotID] {
		case models.SpotRegular:
			regular += t.Amount
		case models.SpotPremium:
			premium += t.Amount
		}
	}

	total := regular + premium
	return SpotTypeRevenue{
		Regular: RevenueShare{Revenue: math.Round(regular), Percentage: share(regular, total)},
		Premium: RevenueShare{Revenue: math.Round(premium), Percentage: share(premium, total)},
		Total:   math.Round(total),
	}
}

// Performance compares today against yesterday.
type Performance struct {
	TodayRevenue        float64 `json:"todayRevenue"`
	TodayVehicles       int     `json:"todayVehicles"`
	CurrentOccupancy    float64 `json:"currentOccupancy"`
	RevenueComparison   float64 `json:"revenueComparison"`
	VehiclesComparison  float64 `json:"vehiclesComparison"`
	OccupancyComparison float64 `json:"occupancyComparison"`
	GoalProgress        float64 `json:"goalProgress"`
}

// DailyPerformance computes today's figures and their percentage deltas
// against yesterday. A zero baseline counts as 100% growth when today is
// non-zero, else 0.
func DailyPerformance(snap ledger.Snapshot, now time.Time) Performance {
	yesterday := now.AddDate(0, 0, -1)

	todayRevenue := 0.0
	todayVehicles := 0
	yesterdayRevenue := 0.0
	yesterdayVehicles := 0
	for _, t := range snap.Transactions {
		switch {
		case sameDay(t.EntryTime, now):
			todayVehicles++
			if t.Paid {
				todayRevenue += t.Amount
			}
		case sameDay(t.EntryTime, yesterday):
			yesterdayVehicles++
			if t.Paid {
				yesterdayRevenue += t.Amount
			}
		}
	}

	currentOccupancy := 0.0
	if len(snap.Spots) > 0 {
		occupied := 0
		for _, s := range snap.Spots {
			if s.Occupied {
				occupied++
			}
		}
		currentOccupancy = round1(float64(occupied) / float64(len(snap.Spots)) * 100)
	}

	avgOccupancy := AdvancedMetrics(snap).OccupancyRate

	goal := todayRevenue / dailyRevenueGoal * 100
	if goal > 100 {
		goal = 100
	}

	return Performance{
		TodayRevenue:        math.Round(todayRevenue),
		TodayVehicles:       todayVehicles,
		CurrentOccupancy:    currentOccupancy,
		RevenueComparison:   delta(todayRevenue, yesterdayRevenue),
		VehiclesComparison:  delta(float64(todayVehicles), float64(yesterdayVehicles)),
		OccupancyComparison: delta(currentOccupancy, avgOccupancy),
		GoalProgress:        goal,
	}
}

// Dashboard holds the quick headline figures.
type Dashboard struct {
	TodayRevenue   float64 `json:"todayRevenue"`
	WeeklyRevenue  float64 `json:"weeklyRevenue"`
	TodayVehicles  int     `json:"todayVehicles"`
	AvailableSpots int     `json:"availableSpots"`
	OccupiedSpots  int     `json:"occupiedSpots"`
	TotalSpots     int     `json:"totalSpots"`
}

// DashboardMetrics computes today's and the trailing week's headline
// figures.
func DashboardMetrics(snap ledger.Snapshot, now time.Time) Dashboard {
	weekAgo := now.AddDate(0, 0, -7)

	todayRevenue := 0.0
	todayVehicles := 0
	weeklyRevenue := 0.0
	for _, t := range snap.Transactions {
		if sameDay(t.EntryTime, now) {
			todayVehicles++
			if t.Paid {
				todayRevenue += t.Amount
			}
		}
		if t.Paid && !t.EntryTime.Before(weekAgo) {
			weeklyRevenue += t.Amount
		}
	}

	stats := ComputeStats(snap)
	return Dashboard{
		TodayRevenue:   math.Round(todayRevenue),
		WeeklyRevenue:  math.Round(weeklyRevenue),
		TodayVehicles:  todayVehicles,
		AvailableSpots: stats.AvailableSpots,
		OccupiedSpots:  stats.OccupiedSpots,
		TotalSpots:     stats.TotalSpots,
	}
}

// Filters narrow the transaction set; zero values mean "all". All active
// filters are ANDed together.
type Filters struct {
	StartDate     string             // inclusive, YYYY-MM-DD
	EndDate       string             // inclusive, YYYY-MM-DD
	SpotType      models.SpotType    // empty for all
	PaymentStatus string             // "paid", "pending" or empty
	VehicleType   models.VehicleType // empty for all
}

// FilteredStats is the aggregate over a filtered transaction set.
type FilteredStats struct {
	Transactions        []models.Transaction `json:"transactions"`
	TotalRevenue        float64              `json:"totalRevenue"`
	VehicleCount        int                  `json:"vehicleCount"`
	PaidCount           int                  `json:"paidCount"`
	AvgTransactionValue float64              `json:"avgTransactionValue"`
	PaymentRate         float64              `json:"paymentRate"`
}

// Filtered applies f to the transactions and aggregates the survivors.
func Filtered(snap ledger.Snapshot, f Filters) FilteredStats {
	types := make(map[int]models.SpotType, len(snap.Spots))
	for _, s := range snap.Spots {
		types[s.ID] = s.Type
	}

	kept := make([]models.Transaction, 0, len(snap.Transactions))
	for _, t := range snap.Transactions {
		if f.StartDate != "" && f.EndDate != "" {
			day := t.EntryTime.Format("2006-01-02")
			if day < f.StartDate || day > f.EndDate {
				continue
			}
		}
		if f.SpotType != "" && types[t.SpotID] != f.SpotType {
			continue
		}
		if f.PaymentStatus == "paid" && !t.Paid {
			continue
		}
		if f.PaymentStatus == "pending" && t.Paid {
			continue
		}
		if f.VehicleType != "" && t.VehicleType != f.VehicleType {
			continue
		}
		kept = append(kept, t)
	}

	revenue := 0.0
	paid := 0
	for _, t := range kept {
		if t.Paid {
			paid++
			revenue += t.Amount
		}
	}

	avg := 0.0
	rate := 0.0
	if len(kept) > 0 {
		avg = round2(revenue / float64(len(kept)))
		rate = round1(float64(paid) / float64(len(kept)) * 100)
	}

	return FilteredStats{
		Transactions:        kept,
		TotalRevenue:        math.Round(revenue),
		VehicleCount:        len(kept),
		PaidCount:           paid,
		AvgTransactionValue: avg,
		PaymentRate:         rate,
	}
}

// delta is the percentage change from baseline to current. A zero baseline
// reports 100 when current is non-zero, else 0.
func delta(current, baseline float64) float64 {
	if baseline == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return round1((current - baseline) / baseline * 100)
}

func share(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return round1(part / total * 100)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
