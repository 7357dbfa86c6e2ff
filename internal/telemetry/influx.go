// Package telemetry is the optional InfluxDB sink for monitor windows. It
// is grounded on the teacher's internal/database/influxdb.go: the same
// client-construction-with-health-check pattern, the same blocking write
// API and tag/field point shape, now writing a batch of points per monitor
// window instead of one point per container sampling step.
package telemetry

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"fpgasched/internal/config"
	"fpgasched/internal/logging"
	"fpgasched/internal/monitor"
)

// InfluxSink writes monitoring-engine OnlineRecords to InfluxDB as they are
// produced: one CPU point per window plus one point per kernel entry on
// each slot (so per-slot occupancy and CPU fields can be queried
// independently).
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
}

// NewInfluxSink dials InfluxDB and verifies it is reachable (spec's
// telemetry config is entirely optional; callers should only construct a
// sink when cfg.Enabled is true).
func NewInfluxSink(cfg config.InfluxConfig) (*InfluxSink, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		logger.WithField("url", cfg.URL).WithError(err).Error("failed to connect to InfluxDB")
		client.Close()
		return nil, err
	}
	if health.Status != "pass" {
		client.Close()
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("telemetry: InfluxDB health check failed: %s", msg)
	}

	logger.WithFields(logrus.Fields{
		"url":    cfg.URL,
		"bucket": cfg.Bucket,
		"org":    cfg.Org,
	}).Info("connected to InfluxDB")

	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// WriteWindow writes one point per kernel entry on each slot in rec, plus
// one host-wide point for the CPU breakdown, all stamped with the window's
// finish timestamp.
func (s *InfluxSink) WriteWindow(rec *monitor.OnlineRecord) error {
	ctx := context.Background()
	ts := time.Unix(rec.Window.Finish.Sec, rec.Window.Finish.Nsec)

	var points []*write.Point

	points = append(points, influxdb2.NewPoint("monitor_window",
		map[string]string{},
		map[string]interface{}{
			"cpu_user":   rec.CPUUser,
			"cpu_kernel": rec.CPUKernel,
			"cpu_idle":   rec.CPUIdle,
		},
		ts))

	for slot, entries := range rec.Slots {
		for _, e := range entries {
			points = append(points, influxdb2.NewPoint("slot_kernel",
				map[string]string{
					"slot":  fmt.Sprintf("%d", slot),
					"label": e.Label.String(),
				},
				map[string]interface{}{
					"arrive_sec": e.Arrive.Sec,
					"finish_sec": e.Finish.Sec,
				},
				ts))
		}
	}

	if len(points) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("telemetry: write window points: %w", err)
	}
	return nil
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
