package adsb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/skylark-data/overflight.report/internal/monitoring"
)

// SourceSBS names the serial BaseStation source in health reports.
const SourceSBS = "sbs"

// Defaults for the SBS source.
const (
	defaultSBSBaudRate         = 115200
	defaultSBSSnapshotInterval = time.Second
	defaultSBSEntryMaxAge      = 300 * time.Second
)

// sbsRecord is one parsed BaseStation MSG line. Optional fields are nil
// when the record does not carry them.
type sbsRecord struct {
	txType   int
	hex      string
	callsign string
	altFt    *float64
	gsKt     *float64
	trackDeg *float64
	lat      *float64
	lon      *float64
	vrateFpm *float64
	squawk   string
}

// sbsEntry is the folded state for one airframe.
type sbsEntry struct {
	aircraft Aircraft
	lastMsg  time.Time
	lastPos  time.Time
}

// SBSSource reads BaseStation (SBS-1) CSV lines from a serial port and
// folds MSG,1/3/4 records into an aircraft table. The table is published
// as a snapshot on a fixed cadence so downstream consumers see the same
// shape as the aircraft.json poller.
type SBSSource struct {
	port             io.ReadCloser
	store            *Store
	snapshotInterval time.Duration
	entryMaxAge      time.Duration

	mu       sync.Mutex
	table    map[string]*sbsEntry
	messages int64

	lastMessages int64
	lastPublish  time.Time
}

// SBSSourceConfig configures an SBSSource.
type SBSSourceConfig struct {
	// PortPath is the serial device path, e.g. /dev/ttyUSB0. Required for
	// NewSBSSource.
	PortPath string

	// BaudRate of the serial link. Zero selects 115200.
	BaudRate int

	// Store receives snapshots and health updates. Required.
	Store *Store

	// SnapshotInterval is the publish cadence. Zero selects one second.
	SnapshotInterval time.Duration

	// EntryMaxAge drops airframes not heard from in this long. Zero
	// selects five minutes.
	EntryMaxAge time.Duration
}

// NewSBSSource opens the serial port and returns a source reading from it.
func NewSBSSource(config SBSSourceConfig) (*SBSSource, error) {
	if config.PortPath == "" {
		return nil, fmt.Errorf("serial port path is required")
	}
	baud := config.BaudRate
	if baud <= 0 {
		baud = defaultSBSBaudRate
	}
	port, err := serial.Open(config.PortPath, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", config.PortPath, err)
	}
	return NewSBSSourceFromReader(port, config)
}

// NewSBSSourceFromReader builds a source over an arbitrary line stream.
// Used by tests and by network taps of an SBS TCP feed.
func NewSBSSourceFromReader(r io.ReadCloser, config SBSSourceConfig) (*SBSSource, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	snapshotInterval := config.SnapshotInterval
	if snapshotInterval <= 0 {
		snapshotInterval = defaultSBSSnapshotInterval
	}
	entryMaxAge := config.EntryMaxAge
	if entryMaxAge <= 0 {
		entryMaxAge = defaultSBSEntryMaxAge
	}
	return &SBSSource{
		port:             r,
		store:            config.Store,
		snapshotInterval: snapshotInterval,
		entryMaxAge:      entryMaxAge,
		table:            make(map[string]*sbsEntry),
	}, nil
}

// Run reads lines and publishes snapshots until the context is cancelled
// or the port fails. The blocking reads happen on their own goroutine so
// cancellation is always observed.
func (s *SBSSource) Run(ctx context.Context) error {
	monitoring.Logf("SBS source started (publish every %v)", s.snapshotInterval)

	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			s.store.RecordFailure(SourceSBS, err, time.Now())
			return fmt.Errorf("SBS read: %w", err)

		case <-ticker.C:
			s.Publish(time.Now())

		case line, ok := <-lineChan:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				err := fmt.Errorf("SBS stream closed")
				s.store.RecordFailure(SourceSBS, err, time.Now())
				return err
			}
			if err := s.FoldLine(line, time.Now()); err != nil {
				monitoring.Logf("SBS line dropped: %v", err)
			}
		}
	}
}

// Close closes the underlying port.
func (s *SBSSource) Close() error {
	return s.port.Close()
}

// FoldLine parses one BaseStation line and folds it into the table.
// Non-MSG lines and unhandled transmission types are ignored without error.
func (s *SBSSource) FoldLine(line string, now time.Time) error {
	rec, err := parseSBSLine(line)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages++

	entry, ok := s.table[rec.hex]
	if !ok {
		entry = &sbsEntry{aircraft: Aircraft{Hex: rec.hex}}
		s.table[rec.hex] = entry
	}
	entry.lastMsg = now
	entry.aircraft.Messages++

	switch rec.txType {
	case 1:
		if rec.callsign != "" {
			entry.aircraft.Flight = rec.callsign
		}
	case 3:
		if rec.altFt != nil {
			entry.aircraft.AltBaro = &Altitude{Valid: true, Ft: *rec.altFt}
		}
		if rec.lat != nil && rec.lon != nil {
			entry.aircraft.Lat = rec.lat
			entry.aircraft.Lon = rec.lon
			entry.lastPos = now
		}
	case 4:
		if rec.gsKt != nil {
			entry.aircraft.GS = rec.gsKt
		}
		if rec.trackDeg != nil {
			entry.aircraft.Track = rec.trackDeg
		}
		if rec.vrateFpm != nil {
			entry.aircraft.BaroRate = rec.vrateFpm
		}
	}
	if rec.squawk != "" {
		entry.aircraft.Squawk = rec.squawk
	}
	return nil
}

// Publish snapshots the folded table into the store, pruning dead entries.
func (s *SBSSource) Publish(now time.Time) {
	s.mu.Lock()

	aircraft := make([]Aircraft, 0, len(s.table))
	for hex, entry := range s.table {
		if now.Sub(entry.lastMsg) > s.entryMaxAge {
			delete(s.table, hex)
			continue
		}
		ac := entry.aircraft
		seen := now.Sub(entry.lastMsg).Seconds()
		ac.Seen = &seen
		if !entry.lastPos.IsZero() {
			seenPos := now.Sub(entry.lastPos).Seconds()
			ac.SeenPos = &seenPos
		}
		aircraft = append(aircraft, ac)
	}
	messages := s.messages
	s.mu.Unlock()

	sort.Slice(aircraft, func(i, j int) bool { return aircraft[i].Hex < aircraft[j].Hex })

	messageRate := -1.0
	if !s.lastPublish.IsZero() && messages >= s.lastMessages {
		if dt := now.Sub(s.lastPublish).Seconds(); dt > 0 {
			messageRate = float64(messages-s.lastMessages) / dt
		}
	}
	s.lastMessages = messages
	s.lastPublish = now

	s.store.Swap(&Snapshot{
		NowUnixSec:       float64(now.UnixNano()) / 1e9,
		Messages:         messages,
		Aircraft:         aircraft,
		FetchedUnixNanos: now.UnixNano(),
		Source:           SourceSBS,
	})
	s.store.RecordSuccess(SourceSBS, len(aircraft), messageRate, now)
}

// parseSBSLine decodes one BaseStation CSV line. Returns (nil, nil) for
// lines that are valid but not folded (non-MSG, or MSG types other than
// 1/3/4 carrying nothing we track).
func parseSBSLine(line string) (*sbsRecord, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	parts := strings.Split(line, ",")
	if parts[0] != "MSG" {
		return nil, nil
	}
	if len(parts) < 5 {
		return nil, fmt.Errorf("MSG line with %d fields", len(parts))
	}

	txType, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("bad transmission type %q", parts[1])
	}
	hex := strings.ToLower(strings.TrimSpace(parts[4]))
	if hex == "" {
		return nil, fmt.Errorf("MSG line without hex ident")
	}

	rec := &sbsRecord{
		txType:   txType,
		hex:      hex,
		callsign: strings.TrimSpace(sbsField(parts, 10)),
		altFt:    sbsFloat(parts, 11),
		gsKt:     sbsFloat(parts, 12),
		trackDeg: sbsFloat(parts, 13),
		lat:      sbsFloat(parts, 14),
		lon:      sbsFloat(parts, 15),
		vrateFpm: sbsFloat(parts, 16),
		squawk:   strings.TrimSpace(sbsField(parts, 17)),
	}
	return rec, nil
}

// sbsField returns field i or "" when the line is short. Feeds routinely
// truncate trailing empty fields.
func sbsField(parts []string, i int) string {
	if i >= len(parts) {
		return ""
	}
	return parts[i]
}

func sbsFloat(parts []string, i int) *float64 {
	str := strings.TrimSpace(sbsField(parts, i))
	if str == "" {
		return nil
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return nil
	}
	return &v
}
