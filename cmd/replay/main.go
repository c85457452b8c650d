// Command replay drives a tracking session with a recorded track and prints
// the alert timeline: every fix at which the visible alert set changes, then
// a per-hazard summary of the closest approach.
//
// Usage:
//
//	go run ./cmd/replay \
//	  -track data/tracks/fc-road.jsonl.zst \
//	  -hazards data/hazards/pune.json \
//	  -radius 0.5
package main

import (
	"cmp"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/config"
	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/observability"
	"github.com/Rajdeep-017/suraksha-net/internal/position"
	"github.com/Rajdeep-017/suraksha-net/internal/tracking"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
)

const applyTimeout = 2 * time.Second

func main() {
	if err := run(os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(out io.Writer) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	trackPath := flag.String("track", "", "recorded track (.jsonl or .jsonl.zst)")
	hazardsPath := flag.String("hazards", "", "JSON array of hazard points")
	radius := flag.Float64("radius", cfg.AlertRadiusKm, "alert radius in kilometers")
	dismissal := flag.String("dismissal", string(cfg.DismissalPolicy), "dismissal policy (sticky, reset_on_exit)")
	interval := flag.Duration("interval", 0, "pause between fixes")
	flag.Parse()

	if *trackPath == "" || *hazardsPath == "" {
		flag.Usage()
		return errors.New("missing required flags: -track, -hazards")
	}
	policy, err := domain.ParseDismissalPolicy(*dismissal)
	if err != nil {
		return err
	}

	samples, err := position.LoadTrack(*trackPath)
	if err != nil {
		return err
	}
	hazards, err := loadHazards(*hazardsPath)
	if err != nil {
		return err
	}

	logger := sharedobs.NewLogger("warn", "text")
	metrics := observability.NewMetrics()
	push := position.NewPush()
	stream := position.NewStream(push, logger, metrics, position.DefaultQueueSize)
	session := tracking.New(stream, tracking.Settings{RadiusKm: *radius, Dismissal: policy}, logger, metrics)
	defer session.Close()

	session.SetHazards(hazards)
	if err := session.Enable(); err != nil {
		return err
	}
	if !waitFor(push.Watching) {
		return errors.New("position stream did not start")
	}

	fmt.Fprintf(out, "=== Replay %s: %d fixes, %d hazards, radius %.2f km ===\n",
		*trackPath, len(samples), len(hazards), session.Settings().RadiusKm)

	tl := newTimeline()
	// Fixes are restamped on a strictly increasing clock so none is
	// discarded as out of order.
	base := time.Now().UTC()
	for i, sample := range samples {
		if !sample.Valid() {
			tl.skipped++
			continue
		}
		recorded := sample.Timestamp
		sample.Timestamp = base.Add(time.Duration(i) * time.Millisecond)
		if err := push.Publish(sample); err != nil {
			return fmt.Errorf("publish fix %d: %w", i+1, err)
		}
		applied := waitFor(func() bool {
			p, ok := session.Position()
			return ok && p.Timestamp.Equal(sample.Timestamp)
		})
		if !applied {
			if err := session.Err(); err != nil {
				return fmt.Errorf("tracking stopped at fix %d: %w", i+1, err)
			}
			return fmt.Errorf("fix %d was not applied within %s", i+1, applyTimeout)
		}

		tl.observe(out, i+1, recorded, sample, session.Alerts())
		if *interval > 0 {
			time.Sleep(*interval)
		}
	}

	tl.summarize(out)
	return nil
}

func loadHazards(path string) ([]domain.HazardPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hazards: %w", err)
	}
	var hazards []domain.HazardPoint
	if err := json.Unmarshal(data, &hazards); err != nil {
		return nil, fmt.Errorf("decode hazards %s: %w", path, err)
	}
	return hazards, nil
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(applyTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

// approach records the closest distance to one alerted hazard.
type approach struct {
	id      string
	closest float64
	tier    domain.Tier
	fix     int
}

type timeline struct {
	lastKey  string
	fixes    int
	skipped  int
	changes  int
	closest  map[string]*approach
	alertIDs []string
}

func newTimeline() *timeline {
	return &timeline{closest: make(map[string]*approach)}
}

func (t *timeline) observe(out io.Writer, n int, recorded time.Time, sample domain.PositionSample, alerts []domain.ProximityAlert) {
	t.fixes++
	for _, a := range alerts {
		ap, ok := t.closest[a.HazardID]
		if !ok {
			ap = &approach{id: a.HazardID, closest: a.DistanceKm, tier: a.Tier, fix: n}
			t.closest[a.HazardID] = ap
			t.alertIDs = append(t.alertIDs, a.HazardID)
		}
		if a.DistanceKm < ap.closest {
			ap.closest, ap.tier, ap.fix = a.DistanceKm, a.Tier, n
		}
	}

	parts := make([]string, len(alerts))
	for i, a := range alerts {
		parts[i] = fmt.Sprintf("%s %s", a.HazardID, a.Tier)
	}
	key := strings.Join(parts, "|")
	if key == t.lastKey {
		return
	}
	t.lastKey = key
	t.changes++

	at := "-"
	if !recorded.IsZero() {
		at = recorded.Format("15:04:05")
	}
	if len(alerts) == 0 {
		fmt.Fprintf(out, "#%-5d %s  %.5f,%.5f  clear\n", n, at, sample.Lat, sample.Lng)
		return
	}
	for i, a := range alerts {
		parts[i] = fmt.Sprintf("%s %s %s", a.HazardID, a.Tier, a.Distance)
	}
	fmt.Fprintf(out, "#%-5d %s  %.5f,%.5f  ALERT  %s\n", n, at, sample.Lat, sample.Lng, strings.Join(parts, " | "))
}

func (t *timeline) summarize(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "fixes replayed: %d, skipped: %d, alert changes: %d, hazards alerted: %d\n",
		t.fixes, t.skipped, t.changes, len(t.alertIDs))

	approaches := make([]*approach, 0, len(t.closest))
	for _, id := range t.alertIDs {
		approaches = append(approaches, t.closest[id])
	}
	slices.SortStableFunc(approaches, func(a, b *approach) int {
		return cmp.Compare(a.closest, b.closest)
	})
	for _, ap := range approaches {
		fmt.Fprintf(out, "  %-24s closest %-8s %-9s at fix #%d\n", ap.id, domain.FormatDistance(ap.closest), ap.tier, ap.fix)
	}
}
