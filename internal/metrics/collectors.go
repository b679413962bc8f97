package metrics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"navfund/pkg/logger"
)

// StoreCollector reports row counts from the backing stores at scrape time
type StoreCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn

	// Descriptors
	totalFunds         *prometheus.Desc
	redemptionRequests *prometheus.Desc
	ledgerAccounts     *prometheus.Desc
	navHistoryRows     *prometheus.Desc
}

// NewStoreCollector creates a collector. clickhouse may be nil when the archive is disabled.
func NewStoreCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn) *StoreCollector {
	return &StoreCollector{
		log:        log,
		postgres:   postgres,
		clickhouse: clickhouse,

		totalFunds: prometheus.NewDesc(
			"navfund_funds",
			"Number of funds",
			nil, nil,
		),
		redemptionRequests: prometheus.NewDesc(
			"navfund_redemption_requests",
			"Redemption requests across all funds by status",
			[]string{"status"}, nil,
		),
		ledgerAccounts: prometheus.NewDesc(
			"navfund_ledger_accounts",
			"Ledger balance rows by asset",
			[]string{"asset"}, nil,
		),
		navHistoryRows: prometheus.NewDesc(
			"navfund_nav_history_rows",
			"Rows in the NAV history archive",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalFunds
	ch <- c.redemptionRequests
	ch <- c.ledgerAccounts
	ch <- c.navHistoryRows
}

// Collect implements prometheus.Collector
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectFundCount(ctx, ch)
	c.collectRedemptionStats(ctx, ch)
	c.collectLedgerStats(ctx, ch)

	if c.clickhouse != nil {
		c.collectNavHistory(ctx, ch)
	}
}

func (c *StoreCollector) collectFundCount(ctx context.Context, ch chan<- prometheus.Metric) {
	var count int
	if err := c.postgres.GetContext(ctx, &count, "SELECT COUNT(*) FROM funds"); err != nil {
		c.log.Errorw("Failed to collect fund count metric", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.totalFunds, prometheus.GaugeValue, float64(count))
}

func (c *StoreCollector) collectRedemptionStats(ctx context.Context, ch chan<- prometheus.Metric) {
	type RedemptionStat struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}

	var stats []RedemptionStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT status, COUNT(*) as count
		FROM redemption_requests
		GROUP BY status
	`)
	if err != nil {
		c.log.Errorw("Failed to collect redemption stats", "error", err)
		return
	}

	for _, stat := range stats {
		ch <- prometheus.MustNewConstMetric(
			c.redemptionRequests,
			prometheus.GaugeValue,
			float64(stat.Count),
			stat.Status,
		)
	}
}

func (c *StoreCollector) collectLedgerStats(ctx context.Context, ch chan<- prometheus.Metric) {
	type LedgerStat struct {
		Asset string `db:"asset"`
		Count int    `db:"count"`
	}

	var stats []LedgerStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT asset, COUNT(*) as count
		FROM ledger_balances
		GROUP BY asset
	`)
	if err != nil {
		c.log.Errorw("Failed to collect ledger stats", "error", err)
		return
	}

	for _, stat := range stats {
		ch <- prometheus.MustNewConstMetric(
			c.ledgerAccounts,
			prometheus.GaugeValue,
			float64(stat.Count),
			stat.Asset,
		)
	}
}

func (c *StoreCollector) collectNavHistory(ctx context.Context, ch chan<- prometheus.Metric) {
	var count uint64
	if err := c.clickhouse.QueryRow(ctx, "SELECT count() FROM nav_history").Scan(&count); err != nil {
		c.log.Errorw("Failed to collect nav history count", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.navHistoryRows, prometheus.GaugeValue, float64(count))
}

// RegisterStoreCollector registers the store collector
func RegisterStoreCollector(collector *StoreCollector) {
	prometheus.MustRegister(collector)
}
