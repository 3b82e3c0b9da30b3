package adsb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineNm(t *testing.T) {
	t.Parallel()

	// Same point.
	assert.InDelta(t, 0, HaversineNm(51.47, -0.45, 51.47, -0.45), 1e-9)

	// One degree of latitude is 60 nm by construction of the nautical mile.
	assert.InDelta(t, 60.0, HaversineNm(51.0, 0, 52.0, 0), 0.1)

	// Heathrow to Gatwick, roughly 22 nm.
	d := HaversineNm(51.4700, -0.4543, 51.1537, -0.1821)
	assert.InDelta(t, 22.0, d, 1.5)
}

func TestInitialBearingDeg(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0, InitialBearingDeg(51, 0, 52, 0), 1e-6)    // due north
	assert.InDelta(t, 180, InitialBearingDeg(52, 0, 51, 0), 1e-6)  // due south
	assert.InDelta(t, 90, InitialBearingDeg(0, 0, 0, 1), 1e-6)     // due east on the equator
	assert.InDelta(t, 270, InitialBearingDeg(0, 1, 0, 0), 1e-6)    // due west on the equator
	b := InitialBearingDeg(51, 0, 52, 1.6)                         // north-east
	assert.Greater(t, b, 0.0)
	assert.Less(t, b, 90.0)
}

func TestAngularDiffDeg(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, AngularDiffDeg(90, 90))
	assert.Equal(t, 10.0, AngularDiffDeg(5, 355))
	assert.Equal(t, 10.0, AngularDiffDeg(355, 5))
	assert.Equal(t, 180.0, AngularDiffDeg(0, 180))
	assert.InDelta(t, 20.0, AngularDiffDeg(710, 10), 1e-9)
}
