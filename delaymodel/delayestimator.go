// Package delaymodel provides performance models for the time a packet takes
// to cross one wireless hop.
package delaymodel

import "gitlab.com/akita/akita/v3/sim"

// SpeedOfLight is the propagation speed used by the constant speed model, in
// metres per second.
const SpeedOfLight = 299792458.0

// A DelayInput represents the input of a delay estimator.
type DelayInput struct {
	DistanceInMetre float64
	Bytes           int
}

// A DelayOutput represents the output of a delay estimator.
type DelayOutput struct {
	// The estimated hop delay in seconds.
	Delay sim.VTimeInSec
}

// DelayEstimator estimates the delay of a hop.
type DelayEstimator interface {
	// Estimate estimates the delay of sending a packet over one hop.
	Estimate(input DelayInput) (DelayOutput, error)
}

// A FixedDelayEstimator always returns the same delay.
type FixedDelayEstimator struct {
	Delay sim.VTimeInSec
}

// Estimate always returns the fixed delay.
func (e *FixedDelayEstimator) Estimate(
	input DelayInput,
) (DelayOutput, error) {
	return DelayOutput{
		Delay: e.Delay,
	}, nil
}

// A ConstantSpeedDelayEstimator adds the propagation delay at the speed of
// light, the transmission time at the PHY rate and a constant MAC overhead.
type ConstantSpeedDelayEstimator struct {
	// PHY data rate in bits per second.
	BitsPerSecond float64

	// Per frame channel access and preamble overhead.
	MACOverhead sim.VTimeInSec
}

// NewConstantSpeedDelayEstimator returns the estimator for an 802.11b
// DSSS 11 Mbit/s PHY.
func NewConstantSpeedDelayEstimator() *ConstantSpeedDelayEstimator {
	return &ConstantSpeedDelayEstimator{
		BitsPerSecond: 11e6,
		MACOverhead:   192e-6 + 50e-6,
	}
}

// Estimate estimates the delay of a hop from its length and the packet size.
func (e *ConstantSpeedDelayEstimator) Estimate(
	input DelayInput,
) (DelayOutput, error) {
	propagation := input.DistanceInMetre / SpeedOfLight
	transmission := float64(input.Bytes) * 8 / e.BitsPerSecond

	return DelayOutput{
		Delay: sim.VTimeInSec(propagation+transmission) + e.MACOverhead,
	}, nil
}
