// Command overflight-report watches a fixed sky camera for aircraft. It
// ingests chunked RGB frames over UDP, runs the detection pipeline
// (segmentation, motion, blobs, tracking, scoring, ADS-B correlation),
// persists tracks and detections to SQLite, and serves the JSON API, event
// stream and chart pages.
//
// Usage:
//
//	overflight-report [flags]
//	overflight-report migrate <up|down|status|version|force> [--db-path <path>]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/skylark-data/overflight.report/internal/adsb"
	"github.com/skylark-data/overflight.report/internal/api"
	"github.com/skylark-data/overflight.report/internal/camera"
	"github.com/skylark-data/overflight.report/internal/config"
	"github.com/skylark-data/overflight.report/internal/db"
	"github.com/skylark-data/overflight.report/internal/version"
	"github.com/skylark-data/overflight.report/internal/vision"
	"github.com/skylark-data/overflight.report/internal/vision/pipeline"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	configPath  = flag.String("config", "", "Tuning config JSON; built-in defaults when empty")
	devMode     = flag.Bool("dev", false, "Run in dev mode (schema migrations read from the working tree)")
	noADSB      = flag.Bool("no-adsb", false, "Run without ADS-B sources; tracks stay anonymous")
	debugLog    = flag.String("debug-log", "", "Append detection debug streams to this file ('-' for stderr)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// setupDebugLog routes the vision and pipeline debug streams to the given
// destination. Streams stay silent when no destination is set.
func setupDebugLog(path string) error {
	if path == "" {
		return nil
	}
	var w io.Writer = os.Stderr
	if path != "-" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		w = f
	}
	streams := vision.LogWriters{Ops: w, Diag: w, Trace: w}
	vision.SetLogWriters(streams)
	pipeline.SetLogWriters(streams)
	return nil
}

func loadTuning(path string) *config.TuningConfig {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		} else {
			log.Print("no tuning config found, using built-in defaults")
			return config.DefaultTuningConfig()
		}
	}
	tuning, err := config.LoadTuningConfig(path)
	if err != nil {
		log.Fatalf("Failed to load tuning config %s: %v", path, err)
	}
	log.Printf("loaded tuning config from %s", path)
	return tuning
}

// buildPipeline wires the detection stages from the tuning config. The
// calibration state is shared by the segmenter (writes sky bounds) and the
// motion detector (reads/writes noise sigma).
func buildPipeline(tuning *config.TuningConfig, tracker *vision.Tracker,
	cal *vision.CalibrationState, correlator *adsb.Correlator, aircraft *adsb.Store,
	database *db.DB, events *api.EventBus, imageDir string) (*pipeline.Pipeline, error) {

	cfg := pipeline.Config{
		Segmenter:         vision.NewSkySegmenter(vision.SegmenterConfigFromTuning(tuning), cal),
		Motion:            vision.NewMotionDetector(vision.MotionConfigFromTuning(tuning), cal),
		Blobs:             vision.NewBlobExtractor(vision.BlobConfigFromTuning(tuning)),
		Tracker:           tracker,
		Scorer:            vision.NewScorer(vision.ConfidenceConfigFromTuning(tuning)),
		Correlator:        correlator,
		Aircraft:          aircraft,
		Publisher:         events,
		MinFrameInterval:  tuning.GetMinFrameInterval(),
		DetectionImageDir: imageDir,
	}
	if database != nil {
		cfg.DB = database.DB
	}
	return pipeline.New(cfg)
}

func main() {
	// The migrate subcommand manages the schema directly and never starts
	// the daemon.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}

	flag.Parse()
	if *showVersion {
		fmt.Printf("overflight-report %s\n", version.String())
		return
	}
	log.Printf("overflight-report %s", version.String())

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}
	if err := setupDebugLog(*debugLog); err != nil {
		log.Fatalf("Failed to open debug log %s: %v", *debugLog, err)
	}

	tuning := loadTuning(*configPath)
	db.DevMode = *devMode

	database, err := db.NewDB(tuning.GetDBPath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Shared state between the pipeline and the API.
	segCfg := vision.SegmenterConfigFromTuning(tuning)
	cal := vision.NewCalibrationState(segCfg.Sky)
	tracker := vision.NewTracker(vision.TrackerConfigFromTuning(tuning))
	events := api.NewEventBus()
	defer events.Close()

	var aircraft *adsb.Store
	var correlator *adsb.Correlator
	if !*noADSB {
		aircraft = adsb.NewStore()
		correlator = adsb.NewCorrelator(adsb.CorrelatorConfigFromTuning(tuning))
	}

	snapshotDir := tuning.GetSnapshotDir()
	pl, err := buildPipeline(tuning, tracker, cal, correlator, aircraft, database, events, snapshotDir)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	frames := camera.NewFrameBuffer()
	stats := camera.NewPacketStats()
	udpListener, err := camera.NewUDPListener(camera.UDPListenerConfig{
		Address:             tuning.GetFrameListenAddr(),
		Stats:               stats,
		Buffer:              frames,
		PartialFrameTimeout: tuning.GetPartialFrameTimeout(),
	})
	if err != nil {
		log.Fatalf("Failed to create frame listener: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// UDP frame listener routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := udpListener.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("frame listener error: %v", err)
			stop()
		}
		log.Print("frame listener routine terminated")
	}()

	// Frame loop routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pl.Run(ctx, frames); err != nil && err != context.Canceled {
			log.Printf("frame loop error: %v", err)
		}
		log.Print("frame loop routine terminated")
	}()

	// ADS-B source routines
	if aircraft != nil {
		poller, err := adsb.NewClient(adsb.ClientConfig{
			URL:          tuning.GetADSBURL(),
			PollInterval: tuning.GetADSBPollInterval(),
			Store:        aircraft,
		})
		if err != nil {
			log.Fatalf("Failed to create ADS-B poller: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := poller.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("ADS-B poller error: %v", err)
			}
			log.Print("ADS-B poller routine terminated")
		}()

		if port := tuning.GetADSBSBSPort(); port != "" {
			sbs, err := adsb.NewSBSSource(adsb.SBSSourceConfig{
				PortPath: port,
				BaudRate: tuning.GetADSBSBSBaud(),
				Store:    aircraft,
			})
			if err != nil {
				log.Fatalf("Failed to open SBS serial source: %v", err)
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sbs.Close()
				if err := sbs.Run(ctx); err != nil && err != context.Canceled {
					log.Printf("SBS source error: %v", err)
				}
				log.Print("SBS source routine terminated")
			}()
		}
	}

	// Retention pruning routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		database.RunRetentionLoop(ctx, tuning.GetRetentionDays(), snapshotDir)
		log.Print("retention routine terminated")
	}()

	// HTTP server routine
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiServer := api.NewServer(api.Config{
			Pipeline:    pl,
			Tracker:     tracker,
			Calibration: cal,
			Aircraft:    aircraft,
			DB:          database,
			Stats:       stats,
			Events:      events,
			Tuning:      tuning,
			SnapshotDir: snapshotDir,
		})

		mux := apiServer.ServeMux()

		// mount the admin debugging routes (accessible only over
		// localhost/via Tailscale)
		database.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Print("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	if err := udpListener.Close(); err != nil {
		log.Printf("frame listener close error: %v", err)
	}
	log.Print("Graceful shutdown complete")
}

// runMigrate handles the migrate subcommand: a --db-path flag anywhere in
// the arguments selects the database; everything else passes through.
func runMigrate(args []string) {
	dbPath := "skywatch_data.db"
	passthrough := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--db-path" && i+1 < len(args):
			dbPath = args[i+1]
			i++
		case args[i] == "--dev":
			db.DevMode = true
		default:
			passthrough = append(passthrough, args[i])
		}
	}
	db.RunMigrateCommand(passthrough, dbPath)
}
