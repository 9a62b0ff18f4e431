// Package audio defines the normalized PCM input contract for analysis.
package audio

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/ciscoittech/sampleagent/internal/errors"
)

// SampleClass describes whether a clip is a short one-shot or a loop.
// One-shots have no natural tempo and skip tempo analysis entirely.
type SampleClass int

const (
	ClassOneShot SampleClass = iota
	ClassLoop
)

// String returns the sample class name.
func (c SampleClass) String() string {
	switch c {
	case ClassOneShot:
		return "oneshot"
	case ClassLoop:
		return "loop"
	default:
		return "unknown"
	}
}

// Clip is an immutable mono PCM buffer handed in by the upstream decoder.
// Callers guarantee mono conversion before analysis; multi-channel input is
// a contract violation, not something this subsystem silently averages.
type Clip struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Classify derives the sample class from the clip duration. Clips shorter
// than oneShotMaxDuration seconds are one-shots.
func (c *Clip) Classify(oneShotMaxDuration float64) SampleClass {
	if c.Duration() < oneShotMaxDuration {
		return ClassOneShot
	}
	return ClassLoop
}

// Validate checks the clip against the input contract: mono, non-empty and
// a sample rate from the accepted set. Violations are integration errors on
// the caller's side and surface as errors.CategoryValidation.
func (c *Clip) Validate(acceptedRates []int) error {
	if len(c.Samples) == 0 {
		return errors.Newf("clip has no samples").
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}

	if c.Channels != 1 {
		return errors.Newf("clip must be mono, got %d channels", c.Channels).
			Component("audio").
			Category(errors.CategoryValidation).
			Context("channels", c.Channels).
			Build()
	}

	accepted := false
	for _, rate := range acceptedRates {
		if rate == c.SampleRate {
			accepted = true
			break
		}
	}
	if !accepted {
		return errors.Newf("sample rate %d Hz is not in the accepted set", c.SampleRate).
			Component("audio").
			Category(errors.CategoryValidation).
			Context("sample_rate", c.SampleRate).
			Build()
	}

	return nil
}

// Fingerprint returns a stable 64-bit hash of the clip contents, used as the
// analysis result cache key.
func (c *Clip) Fingerprint() uint64 {
	h := fnv.New64a()

	var header [16]byte
	binary.LittleEndian.PutUint32(header[0:], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(header[4:], uint32(c.Channels))
	binary.LittleEndian.PutUint64(header[8:], uint64(len(c.Samples)))
	_, _ = h.Write(header[:])

	var buf [8]byte
	for _, s := range c.Samples {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s))
		_, _ = h.Write(buf[:])
	}

	return h.Sum64()
}
