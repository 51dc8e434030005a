package main

import (
	"time"

	"github.com/Domenick1991/flightbooking/config"
)

const purgeInterval = time.Hour

type sweeps struct {
	Reconcile time.Duration
	Purge     time.Duration
	Retention time.Duration
}

// sweepSchedule returns the intervals of the periodic sweeps; zero disables one.
// The memory driver gets none.
func sweepSchedule(cfg config.Config) sweeps {
	if cfg.Database.Driver == "memory" {
		return sweeps{}
	}
	s := sweeps{
		Reconcile: time.Duration(cfg.Worker.ReconcileIntervalSeconds) * time.Second,
		Retention: time.Duration(cfg.Worker.FlightRetentionDays) * 24 * time.Hour,
	}
	if s.Retention > 0 {
		s.Purge = purgeInterval
	}
	return s
}
