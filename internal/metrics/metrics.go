// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttempts counts individual HTTP attempts, including retries.
	FetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetch_attempts_total",
		Help: "Total HTTP attempts issued, including retries.",
	})

	// FetchRetries counts attempts after the first within one logical fetch.
	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetch_retries_total",
		Help: "Total retry attempts after a transient failure.",
	})

	// FetchSuccesses counts fetches that returned a usable XML body.
	FetchSuccesses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetch_successes_total",
		Help: "Total fetches classified as success.",
	})

	// FetchNotFound counts fetches answered with a 404.
	FetchNotFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetch_not_found_total",
		Help: "Total fetches classified as not found.",
	})

	// FetchExhausted counts fetches that ran out of retries.
	FetchExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetch_exhausted_total",
		Help: "Total fetches that exhausted all retries.",
	})

	// DaysFetched counts day units whose index was fetched from the API.
	DaysFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_days_fetched_total",
		Help: "Total day units whose index was fetched remotely.",
	})

	// DaysSkipped counts day units served from already-stored records.
	DaysSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_days_skipped_total",
		Help: "Total day units satisfied from the local record store.",
	})

	// RecordsAppended counts item records appended to the tabular store.
	RecordsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_records_appended_total",
		Help: "Total item records appended to the CSV store.",
	})

	// DocumentsSaved counts document bodies written to the file tree.
	DocumentsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_documents_saved_total",
		Help: "Total document files written.",
	})

	// DocumentsFailed counts per-item document fetch/store failures.
	DocumentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_documents_failed_total",
		Help: "Total document fetches or writes that failed.",
	})
)
