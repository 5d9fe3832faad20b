package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Period selects the window of bets included in the dashboard statistics
type Period string

const (
	PeriodDay   Period = "1d"
	PeriodWeek  Period = "1w"
	PeriodMonth Period = "1m"
	PeriodAll   Period = "all"
)

// ParsePeriod converts a query value into a Period, defaulting to all when empty
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodAll, nil
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodAll:
		return Period(s), nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// DashboardStats contains aggregated statistics over a set of active bets
type DashboardStats struct {
	TotalBets   int             `json:"totalBets"`
	WonBets     int             `json:"wonBets"`
	LostBets    int             `json:"lostBets"`
	PendingBets int             `json:"pendingBets"`
	TotalStake  decimal.Decimal `json:"totalStake"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
	BiggestWin  decimal.Decimal `json:"biggestWin"`
	BiggestLoss decimal.Decimal `json:"biggestLoss"`
	SuccessRate decimal.Decimal `json:"successRate"`
	ROI         decimal.Decimal `json:"roi"`
	AvgOdds     decimal.Decimal `json:"avgOdds"`
}

// DailyProfitPoint is the net profit of one calendar day
type DailyProfitPoint struct {
	Day    time.Time       `json:"day"`
	Label  string          `json:"label"`
	Profit decimal.Decimal `json:"profit"`
}

// DailyProfitSeries holds seven consecutive days, oldest first
type DailyProfitSeries [7]DailyProfitPoint

// Dashboard is the combined view pushed to clients
type Dashboard struct {
	Period      Period            `json:"period"`
	Stats       DashboardStats    `json:"stats"`
	DailyProfit DailyProfitSeries `json:"dailyProfit"`
	RecentBets  []*Bet            `json:"recentBets"`
	Account     *Account          `json:"account"`
	GeneratedAt time.Time         `json:"generatedAt"`
}
