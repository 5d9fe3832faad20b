package service

import (
	"sort"
	"time"

	"github.com/idkrafsan/BetTracker/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ActiveBets drops deleted, nil and unrecognized-status records, keeping input order
func ActiveBets(bets []*models.Bet) []*models.Bet {
	active := make([]*models.Bet, 0, len(bets))
	for _, b := range bets {
		if b != nil && b.Status.IsActive() {
			active = append(active, b)
		}
	}
	return active
}

// ComputeStats aggregates the active bets of a snapshot. It never fails:
// an empty snapshot yields all zeros and malformed records contribute nothing.
func ComputeStats(bets []*models.Bet) models.DashboardStats {
	stats := models.DashboardStats{
		TotalStake:  decimal.Zero,
		TotalProfit: decimal.Zero,
		BiggestWin:  decimal.Zero,
		BiggestLoss: decimal.Zero,
		SuccessRate: decimal.Zero,
		ROI:         decimal.Zero,
		AvgOdds:     decimal.Zero,
	}

	oddsSum := decimal.Zero
	worstLoss := decimal.Zero

	for _, b := range ActiveBets(bets) {
		stats.TotalBets++
		profit := b.ProfitLoss()

		switch b.Status {
		case models.BetStatusWon:
			stats.WonBets++
			if profit.GreaterThan(stats.BiggestWin) {
				stats.BiggestWin = profit
			}
		case models.BetStatusLost:
			stats.LostBets++
			if profit.LessThan(worstLoss) {
				worstLoss = profit
			}
		case models.BetStatusPending:
			stats.PendingBets++
		case models.BetStatusDeleted:
			// filtered out by ActiveBets
		}

		if b.Stake.IsPositive() {
			stats.TotalStake = stats.TotalStake.Add(b.Stake)
		}
		if b.Odds.IsPositive() {
			oddsSum = oddsSum.Add(b.Odds)
		}
		stats.TotalProfit = stats.TotalProfit.Add(profit)
	}

	stats.BiggestWin = stats.BiggestWin.Round(2)
	stats.BiggestLoss = worstLoss.Abs().Round(2)

	if stats.TotalBets > 0 {
		total := decimal.NewFromInt(int64(stats.TotalBets))
		stats.SuccessRate = decimal.NewFromInt(int64(stats.WonBets)).Div(total).Mul(hundred).Round(1)
		stats.AvgOdds = oddsSum.Div(total).Round(2)
	}
	if stats.TotalStake.IsPositive() {
		stats.ROI = stats.TotalProfit.Div(stats.TotalStake).Mul(hundred).Round(1)
	}

	return stats
}

// FilterByPeriod keeps the active bets whose date falls inside the period ending at now.
// Calendar arithmetic happens in now's location.
func FilterByPeriod(bets []*models.Bet, period models.Period, now time.Time) []*models.Bet {
	active := ActiveBets(bets)

	var keep func(date time.Time) bool
	switch period {
	case models.PeriodDay:
		y, m, d := now.Date()
		keep = func(date time.Time) bool {
			by, bm, bd := date.In(now.Location()).Date()
			return by == y && bm == m && bd == d
		}
	case models.PeriodWeek:
		cutoff := now.AddDate(0, 0, -7)
		keep = func(date time.Time) bool { return !date.Before(cutoff) }
	case models.PeriodMonth:
		cutoff := now.AddDate(0, -1, 0)
		keep = func(date time.Time) bool { return !date.Before(cutoff) }
	case models.PeriodAll:
		return active
	default:
		return active
	}

	filtered := make([]*models.Bet, 0, len(active))
	for _, b := range active {
		if keep(b.Date) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// DailyProfit returns the net profit of each of the seven calendar days ending
// today, oldest first. Days without bets report zero.
func DailyProfit(bets []*models.Bet, now time.Time) models.DailyProfitSeries {
	today := startOfDay(now)
	active := ActiveBets(bets)

	var series models.DailyProfitSeries
	for i := range series {
		dayStart := today.AddDate(0, 0, i-(len(series)-1))
		dayEnd := dayStart.AddDate(0, 0, 1)

		profit := decimal.Zero
		for _, b := range active {
			if !b.Date.Before(dayStart) && b.Date.Before(dayEnd) {
				profit = profit.Add(b.ProfitLoss())
			}
		}

		series[i] = models.DailyProfitPoint{
			Day:    dayStart,
			Label:  dayStart.Weekday().String()[:3],
			Profit: profit,
		}
	}
	return series
}

// RecentBets returns up to limit active bets, newest first. The input is not reordered.
func RecentBets(bets []*models.Bet, limit int) []*models.Bet {
	recent := ActiveBets(bets)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Date.After(recent[j].Date)
	})
	if limit >= 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	return recent
}

// BuildDashboard combines the statistics for a period with the period independent
// daily series and recent list. The account is attached as is; it may lag or lead
// the bet snapshot.
func BuildDashboard(bets []*models.Bet, account *models.Account, period models.Period, now time.Time, recentLimit int) *models.Dashboard {
	return &models.Dashboard{
		Period:      period,
		Stats:       ComputeStats(FilterByPeriod(bets, period, now)),
		DailyProfit: DailyProfit(bets, now),
		RecentBets:  RecentBets(bets, recentLimit),
		Account:     account,
		GeneratedAt: now,
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
