// Package adsb pulls aircraft state from a local ADS-B receiver and matches
// it against visually tracked objects. Two sources are supported: polling a
// dump1090-compatible aircraft.json endpoint, and folding BaseStation (SBS-1)
// records read from a serial port. Both publish whole snapshots into a Store;
// the correlator only ever reads a consistent snapshot.
package adsb

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skylark-data/overflight.report/internal/units"
)

// Altitude is a dump1090 barometric altitude, which is either feet or the
// literal string "ground".
type Altitude struct {
	Valid  bool
	Ground bool
	Ft     float64
}

// UnmarshalJSON accepts a number of feet, "ground", or null.
func (a *Altitude) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		if str == "ground" {
			a.Valid = true
			a.Ground = true
			return nil
		}
		return fmt.Errorf("unexpected altitude %q", str)
	}
	var ft float64
	if err := json.Unmarshal(b, &ft); err != nil {
		return err
	}
	a.Valid = true
	a.Ft = ft
	return nil
}

// MarshalJSON emits the same representation dump1090 uses.
func (a Altitude) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	if a.Ground {
		return []byte(`"ground"`), nil
	}
	return json.Marshal(a.Ft)
}

// Aircraft is one aircraft record in the dump1090 aircraft.json schema.
// Optional fields are pointers: absent means the receiver has not decoded
// that value yet.
type Aircraft struct {
	Hex      string    `json:"hex"`
	Flight   string    `json:"flight,omitempty"`
	AltBaro  *Altitude `json:"alt_baro,omitempty"`
	GS       *float64  `json:"gs,omitempty"`    // ground speed, knots
	Track    *float64  `json:"track,omitempty"` // true ground track, degrees
	Lat      *float64  `json:"lat,omitempty"`
	Lon      *float64  `json:"lon,omitempty"`
	BaroRate *float64  `json:"baro_rate,omitempty"` // ft/min
	Squawk   string    `json:"squawk,omitempty"`
	Seen     *float64  `json:"seen,omitempty"`     // seconds since any message
	SeenPos  *float64  `json:"seen_pos,omitempty"` // seconds since position message
	Messages int64     `json:"messages,omitempty"`
	RSSI     *float64  `json:"rssi,omitempty"`
}

// Callsign returns the trimmed flight identifier.
func (a *Aircraft) Callsign() string {
	return strings.TrimSpace(a.Flight)
}

// HasPosition reports whether the record carries a decoded lat/lon.
func (a *Aircraft) HasPosition() bool {
	return a.Lat != nil && a.Lon != nil
}

// PositionAgeSec returns seen_pos, or +Inf when the aircraft has never
// reported a position.
func (a *Aircraft) PositionAgeSec() float64 {
	if a.SeenPos == nil {
		return math.Inf(1)
	}
	return *a.SeenPos
}

// AgeSec returns seen, or +Inf when unknown.
func (a *Aircraft) AgeSec() float64 {
	if a.Seen == nil {
		return math.Inf(1)
	}
	return *a.Seen
}

// AltitudeFt returns the barometric altitude in feet. Aircraft on the
// ground report (0, true) via the "ground" marker.
func (a *Aircraft) AltitudeFt() (float64, bool) {
	if a.AltBaro == nil || !a.AltBaro.Valid {
		return 0, false
	}
	if a.AltBaro.Ground {
		return 0, true
	}
	return a.AltBaro.Ft, true
}

// Snapshot is one consistent view of the receiver's aircraft table.
type Snapshot struct {
	// NowUnixSec is the receiver's clock at generation time (dump1090
	// emits fractional seconds).
	NowUnixSec float64 `json:"now"`

	// Messages is the receiver's cumulative Mode S message counter.
	Messages int64 `json:"messages"`

	Aircraft []Aircraft `json:"aircraft"`

	// FetchedUnixNanos is the local receive time; freshness checks use
	// this, not the receiver clock.
	FetchedUnixNanos int64 `json:"fetched_unix_nanos"`

	// Source names the producer ("poll" or "sbs").
	Source string `json:"source"`
}

// ConvertGroundSpeeds returns a copy of the snapshot with each aircraft's
// ground speed converted from knots to the given unit. The receiver is left
// untouched; correlation always works on the knots original.
func (s *Snapshot) ConvertGroundSpeeds(unit string) *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Aircraft = make([]Aircraft, len(s.Aircraft))
	copy(out.Aircraft, s.Aircraft)
	for i := range out.Aircraft {
		if gs := out.Aircraft[i].GS; gs != nil {
			v := units.ConvertSpeed(units.KnotsToMps(*gs), unit)
			out.Aircraft[i].GS = &v
		}
	}
	return &out
}

// SourceHealth describes the recent behavior of one snapshot producer.
type SourceHealth struct {
	Source               string  `json:"source"`
	LastSuccessUnixNanos int64   `json:"last_success_unix_nanos,omitempty"`
	LastErrorUnixNanos   int64   `json:"last_error_unix_nanos,omitempty"`
	LastError            string  `json:"last_error,omitempty"`
	ConsecutiveFailures  int     `json:"consecutive_failures"`
	Updates              int64   `json:"updates"`
	MessageRate          float64 `json:"message_rate"` // receiver messages/sec
	AircraftCount        int     `json:"aircraft_count"`
}

// Store holds the latest snapshot and per-source health. The snapshot is
// swapped whole so readers never observe a partial update.
type Store struct {
	snap atomic.Pointer[Snapshot]

	mu     sync.Mutex
	health map[string]*SourceHealth
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{health: make(map[string]*SourceHealth)}
}

// Swap publishes a new snapshot.
func (s *Store) Swap(snap *Snapshot) {
	s.snap.Store(snap)
}

// Latest returns the most recent snapshot regardless of age, or nil.
func (s *Store) Latest() *Snapshot {
	return s.snap.Load()
}

// Current returns the latest snapshot if it is younger than freshness,
// otherwise nil. A stale receiver is treated the same as no receiver.
func (s *Store) Current(freshness time.Duration, now time.Time) *Snapshot {
	snap := s.snap.Load()
	if snap == nil {
		return nil
	}
	if now.Sub(time.Unix(0, snap.FetchedUnixNanos)) > freshness {
		return nil
	}
	return snap
}

// RecordSuccess updates health after a successful snapshot publish.
func (s *Store) RecordSuccess(source string, aircraftCount int, messageRate float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.healthLocked(source)
	h.LastSuccessUnixNanos = now.UnixNano()
	h.ConsecutiveFailures = 0
	h.Updates++
	h.AircraftCount = aircraftCount
	if messageRate >= 0 {
		h.MessageRate = messageRate
	}
}

// RecordFailure updates health after a failed poll or read.
func (s *Store) RecordFailure(source string, err error, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.healthLocked(source)
	h.LastErrorUnixNanos = now.UnixNano()
	h.ConsecutiveFailures++
	if err != nil {
		h.LastError = err.Error()
	}
}

func (s *Store) healthLocked(source string) *SourceHealth {
	h, ok := s.health[source]
	if !ok {
		h = &SourceHealth{Source: source}
		s.health[source] = h
	}
	return h
}

// Health returns a copy of the health table.
func (s *Store) Health() map[string]SourceHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]SourceHealth, len(s.health))
	for k, v := range s.health {
		out[k] = *v
	}
	return out
}
