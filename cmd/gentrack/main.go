// Command gentrack synthesizes a recorded drive along a polyline of
// waypoints at constant speed, for use with cmd/replay and the replay
// position source. Output ending in .zst is zstd-compressed.
//
// Usage:
//
//	go run ./cmd/gentrack \
//	  -path "18.5204,73.8567;18.5310,73.8446;18.5590,73.8077" \
//	  -speed 35 -step 1s \
//	  -out data/tracks/fc-road.jsonl.zst
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/position"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Fixed start time for reproducible tracks.
var baseTime = time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	pathFlag := flag.String("path", "", "semicolon-separated lat,lng waypoints")
	speedKmh := flag.Float64("speed", 40, "constant speed in km/h")
	step := flag.Duration("step", time.Second, "time between fixes")
	accuracy := flag.Float64("accuracy", 5, "reported accuracy in meters")
	out := flag.String("out", "", "output track file (.jsonl or .jsonl.zst)")
	flag.Parse()

	if *pathFlag == "" || *out == "" {
		flag.Usage()
		return errors.New("missing required flags: -path, -out")
	}
	if *speedKmh <= 0 || *step <= 0 {
		return errors.New("-speed and -step must be positive")
	}

	line, err := parsePath(*pathFlag)
	if err != nil {
		return err
	}

	samples := synthesize(line, *speedKmh, *step, *accuracy)

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	if err := position.WriteTrack(f, samples, strings.HasSuffix(*out, ".zst")); err != nil {
		return err
	}
	log.Printf("wrote %d fixes (%.2f km) to %s", len(samples), geo.Length(line)/1000, *out)
	return nil
}

// parsePath reads "lat,lng;lat,lng" into a [lng, lat] line string.
func parsePath(s string) (orb.LineString, error) {
	var line orb.LineString
	for i, pair := range strings.Split(s, ";") {
		parts := strings.Split(strings.TrimSpace(pair), ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("waypoint %d: want lat,lng, got %q", i+1, pair)
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLat != nil || errLng != nil {
			return nil, fmt.Errorf("waypoint %d: invalid coordinates %q", i+1, pair)
		}
		if !(domain.PositionSample{Lat: lat, Lng: lng}).Valid() {
			return nil, fmt.Errorf("waypoint %d: coordinates out of range %q", i+1, pair)
		}
		line = append(line, orb.Point{lng, lat})
	}
	if len(line) < 2 {
		return nil, errors.New("path needs at least two waypoints")
	}
	return line, nil
}

func synthesize(line orb.LineString, speedKmh float64, step time.Duration, accuracy float64) []domain.PositionSample {
	total := geo.Length(line)
	speedMps := speedKmh / 3.6
	stepMeters := speedMps * step.Seconds()

	var samples []domain.PositionSample
	for i := 0; ; i++ {
		dist := float64(i) * stepMeters
		if dist > total {
			dist = total
		}
		p, bearing := geo.PointAtDistanceAlongLine(line, dist)
		heading := normalizeHeading(bearing)
		speed := speedMps
		samples = append(samples, domain.PositionSample{
			Lat:            p.Lat(),
			Lng:            p.Lon(),
			AccuracyMeters: accuracy,
			HeadingDegrees: &heading,
			SpeedMps:       &speed,
			Timestamp:      baseTime.Add(time.Duration(i) * step),
		})
		if dist >= total {
			return samples
		}
	}
}

// normalizeHeading maps a bearing in (-180, 180] to [0, 360).
func normalizeHeading(bearing float64) float64 {
	if bearing < 0 {
		bearing += 360
	}
	if bearing >= 360 {
		bearing -= 360
	}
	return bearing
}
