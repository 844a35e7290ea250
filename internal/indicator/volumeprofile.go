package indicator

import (
	"sort"

	"signalengine/internal/model"
)

// VolumeProfileState classifies price action relative to the point of control.
type VolumeProfileState string

const (
	VolumeProfileAbovePOC VolumeProfileState = "AbovePOC"
	VolumeProfileBelowPOC VolumeProfileState = "BelowPOC"
	VolumeProfileAtPOC    VolumeProfileState = "AtPOC"
)

// VolumeProfile buckets traded volume by price (bucket width `tick`) over a
// trailing `lookback` window and tracks the point of control (POC): the
// bucket with the most accumulated volume.
type VolumeProfile struct {
	tick     float64
	lookback int

	window []model.Candle
	pos    int
	full   bool

	poc float64
}

// NewVolumeProfile creates a VolumeProfile indicator (spec default: tick
// 10.0, lookback 240).
func NewVolumeProfile(tick float64, lookback int) *VolumeProfile {
	return &VolumeProfile{tick: tick, lookback: lookback, window: make([]model.Candle, lookback)}
}

func (v *VolumeProfile) Update(c model.Candle) {
	v.window[v.pos] = c
	v.pos = (v.pos + 1) % v.lookback
	if v.pos == 0 {
		v.full = true
	}
	v.recompute()
}

// recompute rebuilds the bucket histogram and picks the point of control:
// the bucket with the most volume, ties broken toward the lowest bucket so
// the result is deterministic regardless of Go's randomized map iteration
// order (required for invariant 6's bit-for-bit determinism).
func (v *VolumeProfile) recompute() {
	buckets := make(map[float64]float64)
	n := v.pos
	if v.full {
		n = v.lookback
	}
	keys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		c := v.window[i]
		bucket := float64(int64(c.Close/v.tick)) * v.tick
		if _, seen := buckets[bucket]; !seen {
			keys = append(keys, bucket)
		}
		buckets[bucket] += c.Volume
	}
	sort.Float64s(keys)

	bestBucket, bestVol := 0.0, -1.0
	for _, bucket := range keys {
		if vol := buckets[bucket]; vol > bestVol {
			bestVol = vol
			bestBucket = bucket
		}
	}
	v.poc = bestBucket
}

func (v *VolumeProfile) Ready() bool    { return v.full || v.pos > 0 }
func (v *VolumeProfile) POC() float64   { return v.poc }

// State classifies the given price relative to the point of control, within
// one tick treated as "at" the POC.
func (v *VolumeProfile) State(price float64) VolumeProfileState {
	if !v.Ready() {
		return VolumeProfileAtPOC
	}
	diff := price - v.poc
	if abs(diff) <= v.tick {
		return VolumeProfileAtPOC
	}
	if diff > 0 {
		return VolumeProfileAbovePOC
	}
	return VolumeProfileBelowPOC
}
