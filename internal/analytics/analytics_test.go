package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estaciona/parkops-server/internal/ledger"
	"github.com/estaciona/parkops-server/internal/models"
)

var testNow = time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

func testSpots() []models.Spot {
	return []models.Spot{
		{ID: 1, Number: 1, Type: models.SpotRegular, HourlyRate: 5.0},
		{ID: 2, Number: 2, Type: models.SpotRegular, HourlyRate: 5.0, Occupied: true, VehicleID: "v-1"},
		{ID: 3, Number: 3, Type: models.SpotPremium, HourlyRate: 8.0},
		{ID: 4, Number: 4, Type: models.SpotPremium, HourlyRate: 8.0},
	}
}

func tx(id string, spotID int, vt models.VehicleType, entry time.Time, hours int, amount float64, paid bool) models.Transaction {
	return models.Transaction{
		ID:           id,
		LicensePlate: "TST-" + id,
		VehicleType:  vt,
		SpotID:       spotID,
		EntryTime:    entry,
		ExitTime:     entry.Add(time.Duration(hours) * time.Hour),
		Hours:        hours,
		Amount:       amount,
		Paid:         paid,
	}
}

func testSnapshot() ledger.Snapshot {
	yesterday := testNow.AddDate(0, 0, -1)
	lastWeek := testNow.AddDate(0, 0, -6)
	return ledger.Snapshot{
		Spots: testSpots(),
		Transactions: []models.Transaction{
			tx("t1", 1, models.VehicleCar, testNow.Add(-4*time.Hour), 2, 10.0, true),
			tx("t2", 1, models.VehicleCar, testNow.Add(-2*time.Hour), 1, 5.0, false),
			tx("t3", 3, models.VehicleTruck, yesterday, 3, 24.0, true),
			tx("t4", 4, models.VehicleMotorcycle, lastWeek, 2, 16.0, true),
		},
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(testSnapshot())

	assert.Equal(t, 4, stats.TotalSpots)
	assert.Equal(t, 1, stats.OccupiedSpots)
	assert.Equal(t, 3, stats.AvailableSpots)
	// Only paid transactions count: 10 + 24 + 16
	assert.Equal(t, 50.0, stats.TotalRevenue)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(ledger.Snapshot{})
	assert.Equal(t, Stats{}, stats)
}

func TestTodayTransactions(t *testing.T) {
	today := TodayTransactions(testSnapshot(), testNow)

	require.Len(t, today, 2)
	assert.Equal(t, "t1", today[0].ID)
	assert.Equal(t, "t2", today[1].ID)
}

func TestAdvancedMetrics(t *testing.T) {
	m := AdvancedMetrics(testSnapshot())

	assert.Equal(t, 50.0, m.TotalRevenue)
	assert.Equal(t, 4, m.TotalVehicles)
	assert.Equal(t, 3, m.PaidTransactions)
	assert.Equal(t, 1, m.PendingPayments)
	// 8 hours over 4 transactions
	assert.Equal(t, 2.0, m.AvgStayTime)
	// 50 / 3 paid
	assert.Equal(t, 16.67, m.AvgRevenuePerVehicle)
	// 8h / 24 = 0.333 spot-days over 4*30 = 120 spot-days, rounds to 0.3
	assert.Equal(t, 0.3, m.OccupancyRate)
}

func TestAdvancedMetricsEmpty(t *testing.T) {
	m := AdvancedMetrics(ledger.Snapshot{})
	assert.Equal(t, Metrics{}, m)
}

func TestRevenueByDayAlwaysSevenEntries(t *testing.T) {
	days := RevenueByDay(ledger.Snapshot{}, testNow)

	require.Len(t, days, 7)
	assert.Equal(t, testNow.AddDate(0, 0, -6).Format("2006-01-02"), days[0].Date)
	assert.Equal(t, testNow.Format("2006-01-02"), days[6].Date)
	for _, d := range days {
		assert.Zero(t, d.Amount)
		assert.NotEmpty(t, d.Label)
	}
}

func TestRevenueByDayBucketsPaidOnly(t *testing.T) {
	days := RevenueByDay(testSnapshot(), testNow)

	require.Len(t, days, 7)
	assert.Equal(t, 16.0, days[0].Amount, "six days ago")
	assert.Equal(t, 24.0, days[5].Amount, "yesterday")
	// t2 is unpaid, only t1 lands today
	assert.Equal(t, 10.0, days[6].Amount, "today")
	for _, d := range days[1:5] {
		assert.Zero(t, d.Amount)
	}
}

func TestHourlyDistribution(t *testing.T) {
	buckets := HourlyDistribution(testSnapshot())

	require.Len(t, buckets, 24)
	for i, b := range buckets {
		assert.Equal(t, i, b.Hour)
	}
	// t1 entered at 10:30, t2 at 12:30
	assert.Equal(t, 1, buckets[10].Count)
	assert.Equal(t, 10.0, buckets[10].Revenue)
	assert.Equal(t, 1, buckets[12].Count)
	assert.Zero(t, buckets[12].Revenue, "unpaid entries count but earn nothing")
	// t3 and t4 both entered at 14:30 on earlier days
	assert.Equal(t, 2, buckets[14].Count)
	assert.Equal(t, 40.0, buckets[14].Revenue)
}

func TestPeakHours(t *testing.T) {
	peaks := PeakHours(testSnapshot())

	require.Len(t, peaks, 3)
	assert.Equal(t, 14, peaks[0].Hour, "busiest hour first")
	assert.Equal(t, 2, peaks[0].Count)
	for _, p := range peaks {
		assert.Greater(t, p.Count, 0, "empty hours are dropped")
	}
}

func TestPeakHoursEmpty(t *testing.T) {
	assert.Empty(t, PeakHours(ledger.Snapshot{}))
}

func TestVehicleTypeDistribution(t *testing.T) {
	shares := VehicleTypeDistribution(testSnapshot())

	require.Len(t, shares, 3)
	assert.Equal(t, models.VehicleCar, shares[0].Type)
	assert.Equal(t, 2, shares[0].Count)
	assert.Equal(t, 10.0, shares[0].Revenue)
	assert.Equal(t, 50.0, shares[0].Percentage)

	assert.Equal(t, models.VehicleMotorcycle, shares[1].Type)
	assert.Equal(t, 25.0, shares[1].Percentage)
	assert.Equal(t, models.VehicleTruck, shares[2].Type)
	assert.Equal(t, 25.0, shares[2].Percentage)
}

func TestVehicleTypeDistributionDropsUnusedTypes(t *testing.T) {
	snap := ledger.Snapshot{
		Spots: testSpots(),
		Transactions: []models.Transaction{
			tx("t1", 1, models.VehicleCar, testNow, 1, 5.0, true),
		},
	}

	shares := VehicleTypeDistribution(snap)
	require.Len(t, shares, 1)
	assert.Equal(t, models.VehicleCar, shares[0].Type)
	assert.Equal(t, 100.0, shares[0].Percentage)
}

func TestSpotEfficiency(t *testing.T) {
	ranked := SpotEfficiency(testSnapshot())

	// Spot 2 has no paid transactions and is dropped
	require.Len(t, ranked, 3)
	for _, r := range ranked {
		assert.Greater(t, r.UsageCount, 0)
	}
	// Ceiling for spot 3: 24*30*8 = 5760; 24/5760 = 0.4%
	// Ceiling for spot 1: 24*30*5 = 3600; 10/3600 = 0.3%
	assert.Equal(t, 3, ranked[0].ID)
	assert.Equal(t, 0.4, ranked[0].Efficiency)

	// Ordered by efficiency, descending
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Efficiency, ranked[i].Efficiency)
	}
}

func TestTopSpotsCapsAtFive(t *testing.T) {
	spots := make([]models.Spot, 8)
	txs := make([]models.Transaction, 0, 8)
	for i := range spots {
		spots[i] = models.Spot{ID: i + 1, Number: i + 1, Type: models.SpotRegular, HourlyRate: 5.0}
		txs = append(txs, tx(string(rune('a'+i)), i+1, models.VehicleCar, testNow, 1, float64((i+1)*10), true))
	}

	top := TopSpots(ledger.Snapshot{Spots: spots, Transactions: txs})
	require.Len(t, top, 5)
	assert.Equal(t, 8, top[0].ID, "highest revenue spot leads")
}

func TestRevenueBySpotType(t *testing.T) {
	r := RevenueBySpotType(testSnapshot())

	assert.Equal(t, 10.0, r.Regular.Revenue)
	assert.Equal(t, 40.0, r.Premium.Revenue)
	assert.Equal(t, 50.0, r.Total)
	assert.Equal(t, 20.0, r.Regular.Percentage)
	assert.Equal(t, 80.0, r.Premium.Percentage)
}

func TestRevenueBySpotTypeEmpty(t *testing.T) {
	r := RevenueBySpotType(ledger.Snapshot{Spots: testSpots()})
	assert.Zero(t, r.Total)
	assert.Zero(t, r.Regular.Percentage)
	assert.Zero(t, r.Premium.Percentage)
}

func TestDailyPerformance(t *testing.T) {
	p := DailyPerformance(testSnapshot(), testNow)

	assert.Equal(t, 10.0, p.TodayRevenue)
	assert.Equal(t, 2, p.TodayVehicles)
	// 1 of 4 spots occupied
	assert.Equal(t, 25.0, p.CurrentOccupancy)
	// today 10 vs yesterday 24
	assert.Equal(t, -58.3, p.RevenueComparison)
	// today 2 vehicles vs yesterday 1
	assert.Equal(t, 100.0, p.VehiclesComparison)
	// 10 of the 500 daily goal
	assert.Equal(t, 2.0, p.GoalProgress)
}

func TestDailyPerformanceZeroBaseline(t *testing.T) {
	snap := ledger.Snapshot{
		Spots: testSpots(),
		Transactions: []models.Transaction{
			tx("t1", 1, models.VehicleCar, testNow, 1, 5.0, true),
		},
	}

	p := DailyPerformance(snap, testNow)
	// Nothing yesterday: any activity today reads as 100% growth
	assert.Equal(t, 100.0, p.RevenueComparison)
	assert.Equal(t, 100.0, p.VehiclesComparison)

	empty := DailyPerformance(ledger.Snapshot{Spots: testSpots()}, testNow)
	assert.Zero(t, empty.RevenueComparison)
	assert.Zero(t, empty.VehiclesComparison)
}

func TestDailyPerformanceGoalProgressCapped(t *testing.T) {
	snap := ledger.Snapshot{
		Spots: testSpots(),
		Transactions: []models.Transaction{
			tx("t1", 1, models.VehicleCar, testNow, 100, 900.0, true),
		},
	}

	p := DailyPerformance(snap, testNow)
	assert.Equal(t, 100.0, p.GoalProgress)
}

func TestDashboardMetrics(t *testing.T) {
	d := DashboardMetrics(testSnapshot(), testNow)

	assert.Equal(t, 10.0, d.TodayRevenue)
	assert.Equal(t, 2, d.TodayVehicles)
	// All three paid transactions fall inside the trailing week
	assert.Equal(t, 50.0, d.WeeklyRevenue)
	assert.Equal(t, 4, d.TotalSpots)
	assert.Equal(t, 1, d.OccupiedSpots)
	assert.Equal(t, 3, d.AvailableSpots)
}

func TestFilteredNoFiltersKeepsAll(t *testing.T) {
	fs := Filtered(testSnapshot(), Filters{})

	assert.Equal(t, 4, fs.VehicleCount)
	assert.Equal(t, 3, fs.PaidCount)
	assert.Equal(t, 50.0, fs.TotalRevenue)
	assert.Equal(t, 12.5, fs.AvgTransactionValue)
	assert.Equal(t, 75.0, fs.PaymentRate)
}

func TestFilteredByPaymentStatus(t *testing.T) {
	paid := Filtered(testSnapshot(), Filters{PaymentStatus: "paid"})
	assert.Equal(t, 3, paid.VehicleCount)
	assert.Equal(t, 100.0, paid.PaymentRate)

	pending := Filtered(testSnapshot(), Filters{PaymentStatus: "pending"})
	assert.Equal(t, 1, pending.VehicleCount)
	assert.Zero(t, pending.TotalRevenue)
	assert.Zero(t, pending.PaymentRate)
}

func TestFilteredBySpotType(t *testing.T) {
	fs := Filtered(testSnapshot(), Filters{SpotType: models.SpotPremium})

	assert.Equal(t, 2, fs.VehicleCount)
	assert.Equal(t, 40.0, fs.TotalRevenue)
}

func TestFilteredByDateRange(t *testing.T) {
	today := testNow.Format("2006-01-02")
	fs := Filtered(testSnapshot(), Filters{StartDate: today, EndDate: today})

	assert.Equal(t, 2, fs.VehicleCount)
	assert.Equal(t, 10.0, fs.TotalRevenue)
}

func TestFilteredCombinesAllFilters(t *testing.T) {
	today := testNow.Format("2006-01-02")
	fs := Filtered(testSnapshot(), Filters{
		StartDate:     today,
		EndDate:       today,
		SpotType:      models.SpotRegular,
		PaymentStatus: "paid",
		VehicleType:   models.VehicleCar,
	})

	require.Len(t, fs.Transactions, 1)
	assert.Equal(t, "t1", fs.Transactions[0].ID)
	assert.Equal(t, 10.0, fs.TotalRevenue)
}

func TestDelta(t *testing.T) {
	assert.Equal(t, 100.0, delta(5, 0))
	assert.Equal(t, 0.0, delta(0, 0))
	assert.Equal(t, 50.0, delta(15, 10))
	assert.Equal(t, -50.0, delta(5, 10))
	assert.Equal(t, 33.3, delta(4, 3))
}
