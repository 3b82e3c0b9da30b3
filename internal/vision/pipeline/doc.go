// Package pipeline wires the vision stages into the per-frame processing
// loop: sky segmentation, motion detection, blob extraction, tracking,
// confidence scoring and ADS-B correlation, followed by persistence and
// event publishing.
//
// This package is the composition root: it imports the stage packages but
// none of them import pipeline/. The Tracker is the only stage carrying
// state across frames, and every stage runs on the single frame-loop
// goroutine; concurrent readers go through the tracker's snapshot
// accessors, never through this package.
package pipeline
