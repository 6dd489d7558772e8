package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var bidsPlaced = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sfauction_bids_placed_total",
	Help: "Bids accepted on this partition.",
})
