package httptransport

import "expvar"

var (
	metricSettleRequestsTotal = expvar.NewInt("http_settle_requests_total")
	metricSettleRequestErrors = expvar.NewInt("http_settle_request_errors_total")

	metricLedgerQueryTotal  = expvar.NewInt("ledger_query_total")
	metricLedgerQueryErrors = expvar.NewInt("ledger_query_errors_total")
	metricLedgerQueryLastMS = expvar.NewInt("ledger_query_last_ms")

	metricAuditRunsTotal     = expvar.NewInt("audit_runs_total")
	metricAuditDiscrepancies = expvar.NewInt("audit_discrepancies_last")
)
