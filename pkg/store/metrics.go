package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sfauction_store_commits_total",
		Help: "Committed transaction scopes.",
	})
	commitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sfauction_store_commit_failures_total",
		Help: "Transaction scopes whose commit failed.",
	})
	scans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sfauction_store_scans_total",
		Help: "Prefix scans opened.",
	})
)
