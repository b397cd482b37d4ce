// Package vad computes per-frame energy readings and detects speech
// boundaries from the reading stream using hysteresis with an adaptive
// silence window.
package vad
