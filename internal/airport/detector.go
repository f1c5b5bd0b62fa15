// Package airport implements the airport detector (spec.md §4.10): a
// 15-second periodic ticker that, while on ground, queries the
// navigation collaborator for the nearest airport and activates the ATC
// controller on a change of ICAO.
package airport

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/atc"
	"github.com/windward/autoflight/internal/facility"
)

const (
	detectInterval   = 15 * time.Second
	detectRadiusNM   = 2.0
	onGroundAGLLimit = 50.0
)

// NearestAirportFinder is the navigation-database collaborator boundary
// (spec.md §6) the detector depends on.
type NearestAirportFinder interface {
	FindNearestAirport(ctx context.Context, lat, lon, radiusNM float64) (icao string, found bool, err error)
	RunwaysFor(ctx context.Context, icao string) ([]facility.RunwayEntry, error)
}

// Detector polls position/AGL snapshots and drives ATC activation.
type Detector struct {
	finder     NearestAirportFinder
	controller *atc.Controller
	logger     *logrus.Logger

	detectedICAO string
}

// NewDetector creates an airport detector.
func NewDetector(finder NearestAirportFinder, controller *atc.Controller, logger *logrus.Logger) *Detector {
	return &Detector{finder: finder, controller: controller, logger: logger}
}

// PositionSnapshot is the minimal per-tick state the detector needs.
type PositionSnapshot struct {
	Lat, Lon float64
	AGL      float64
}

// Run blocks, polling at detectInterval until ctx is cancelled. snapshot
// returns the latest telemetry-derived position; it is called fresh on
// each tick so the detector always reacts to current state.
func (d *Detector) Run(ctx context.Context, snapshot func() PositionSnapshot) {
	ticker := time.NewTicker(detectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx, snapshot())
		}
	}
}

func (d *Detector) tick(ctx context.Context, pos PositionSnapshot) {
	if pos.AGL >= onGroundAGLLimit {
		// Airborne: clear any detected airport per spec.md §4.10.
		d.detectedICAO = ""
		return
	}

	icao, found, err := d.finder.FindNearestAirport(ctx, pos.Lat, pos.Lon, detectRadiusNM)
	if err != nil || !found {
		if err != nil {
			d.logger.WithField("error", err).Debug("nearest-airport query failed")
		}
		return
	}

	if icao == d.detectedICAO {
		return
	}

	runways, err := d.finder.RunwaysFor(ctx, icao)
	if err != nil {
		d.logger.WithFields(logrus.Fields{"icao": icao, "error": err}).Warn("failed to fetch runway list for detected airport")
		return
	}

	d.detectedICAO = icao
	d.controller.SetDetectedAirport(icao, runways)
	d.logger.WithFields(logrus.Fields{"icao": icao, "runways": len(runways)}).Info("airport detected")
}

// DetectedICAO returns the currently detected airport, or "" if none.
func (d *Detector) DetectedICAO() string {
	return d.detectedICAO
}
