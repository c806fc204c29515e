package quant

import (
	"context"
	"fmt"
	"image/color"
)

// Kohonen network constants after Dekker, "Kohonen neural networks for
// optimal colour quantization" (1994).
const (
	prime1 = 499
	prime2 = 491
	prime3 = 487
	prime4 = 503

	// MinSampleBytes is the smallest training set accepted.
	MinSampleBytes = 3 * prime4

	nCycles = 100

	netBiasShift = 4
	intBiasShift = 16
	intBias      = 1 << intBiasShift
	gammaShift   = 10
	betaShift    = 10
	beta         = intBias >> betaShift
	betaGamma    = intBias << (gammaShift - betaShift)

	radiusBiasShift = 6
	radiusBias      = 1 << radiusBiasShift
	radiusDec       = 30

	alphaBiasShift = 10
	initAlpha      = 1 << alphaBiasShift

	radBiasShift    = 8
	radBias         = 1 << radBiasShift
	alphaRadBShift  = alphaBiasShift + radBiasShift
	alphaRadBias    = 1 << alphaRadBShift
	defaultSampling = 10
)

// Config tunes a NeuQuant engine.
type Config struct {
	// SampleFactor trades quality for speed: 1 reads every sample, 30
	// reads one in thirty.
	SampleFactor int `toml:"sample_factor"`
	// CheckEvery is the number of learning steps between checks of the
	// context.
	CheckEvery int `toml:"-"`
}

func DefaultConfig() Config {
	return Config{SampleFactor: defaultSampling, CheckEvery: 1 << 14}
}

// NeuQuant is an Engine built on a self-organising one-dimensional
// Kohonen network. It is not safe for concurrent use.
type NeuQuant struct {
	cfg Config

	network  [][3]int
	bias     []int
	freq     []int
	radPower []int

	palette []color.RGBA
}

// NewNeuQuant returns an untrained engine. Out-of-range sample factors are
// clamped to 1..30.
func NewNeuQuant(cfg Config) *NeuQuant {
	cfg.SampleFactor = min(max(cfg.SampleFactor, 1), 30)
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = DefaultConfig().CheckEvery
	}
	return &NeuQuant{cfg: cfg}
}

// Train implements Engine. A training set shorter than MinSampleBytes is
// refused with a *NeedSamplesError.
func (q *NeuQuant) Train(ctx context.Context, samples []byte, n int) ([]color.RGBA, error) {
	if n < 2 || n > 256 {
		return nil, fmt.Errorf("%w: %d", ErrTooFewColors, n)
	}
	if len(samples)%3 != 0 {
		return nil, fmt.Errorf("samples are not RGB triples: %d bytes", len(samples))
	}
	if len(samples) < MinSampleBytes {
		if len(samples) == 0 {
			return nil, fmt.Errorf("no samples to train on")
		}
		return nil, &NeedSamplesError{
			Have:       len(samples),
			Multiplier: (MinSampleBytes + len(samples) - 1) / len(samples),
		}
	}

	q.init(n)
	if err := q.learn(ctx, samples); err != nil {
		q.palette = nil
		return nil, err
	}
	q.unbias()
	return append([]color.RGBA(nil), q.palette...), nil
}

// Classify implements Engine. It returns 0 before the first successful
// training.
func (q *NeuQuant) Classify(c color.RGBA) int {
	return Nearest(q.palette, c)
}

// Palette returns the trained colors.
func (q *NeuQuant) Palette() color.Palette {
	pal := make(color.Palette, len(q.palette))
	for i, c := range q.palette {
		pal[i] = c
	}
	return pal
}

func (q *NeuQuant) init(n int) {
	q.network = make([][3]int, n)
	q.bias = make([]int, n)
	q.freq = make([]int, n)
	q.radPower = make([]int, n>>3)
	for i := range q.network {
		v := (i << (netBiasShift + 8)) / n
		q.network[i] = [3]int{v, v, v}
		q.freq[i] = intBias / n
	}
}

func (q *NeuQuant) learn(ctx context.Context, samples []byte) error {
	n := len(q.network)
	length := len(samples)
	alphaDec := 30 + (q.cfg.SampleFactor-1)/3
	samplePixels := length / (3 * q.cfg.SampleFactor)
	delta := max(samplePixels/nCycles, 1)
	alpha := initAlpha
	radius := (n >> 3) * radiusBias
	rad := q.setRadius(alpha, radius)

	var step int
	switch {
	case length%prime1 != 0:
		step = 3 * prime1
	case length%prime2 != 0:
		step = 3 * prime2
	case length%prime3 != 0:
		step = 3 * prime3
	default:
		step = 3 * prime4
	}

	pos := 0
	for i := 1; i <= samplePixels; i++ {
		r := int(samples[pos]) << netBiasShift
		g := int(samples[pos+1]) << netBiasShift
		b := int(samples[pos+2]) << netBiasShift
		j := q.contest(r, g, b)
		q.alterSingle(alpha, j, r, g, b)
		if rad > 0 {
			q.alterNeighbours(rad, j, r, g, b)
		}

		pos += step
		for pos >= length {
			pos -= length
		}

		if i%delta == 0 {
			alpha -= alpha / alphaDec
			radius -= radius / radiusDec
			rad = q.setRadius(alpha, radius)
		}
		if i%q.cfg.CheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}

// setRadius recomputes the neighbourhood weights for the current
// learning rate and returns the neighbourhood radius in neurons.
func (q *NeuQuant) setRadius(alpha, radius int) int {
	rad := radius >> radiusBiasShift
	if rad <= 1 {
		return 0
	}
	rad = min(rad, len(q.radPower))
	for i := range rad {
		q.radPower[i] = alpha * (((rad*rad - i*i) * radBias) / (rad * rad))
	}
	return rad
}

// contest finds the neuron closest to the sample after frequency bias and
// updates the bias and frequency bookkeeping.
func (q *NeuQuant) contest(r, g, b int) int {
	bestD, bestBiasD := int(^uint32(0)>>1), int(^uint32(0)>>1)
	bestPos, bestBiasPos := -1, -1
	for i, nu := range q.network {
		dist := abs(nu[0]-r) + abs(nu[1]-g) + abs(nu[2]-b)
		if dist < bestD {
			bestD, bestPos = dist, i
		}
		biasDist := dist - (q.bias[i] >> (intBiasShift - netBiasShift))
		if biasDist < bestBiasD {
			bestBiasD, bestBiasPos = biasDist, i
		}
		betaFreq := q.freq[i] >> betaShift
		q.freq[i] -= betaFreq
		q.bias[i] += betaFreq << gammaShift
	}
	q.freq[bestPos] += beta
	q.bias[bestPos] -= betaGamma
	return bestBiasPos
}

func (q *NeuQuant) alterSingle(alpha, i, r, g, b int) {
	nu := &q.network[i]
	nu[0] -= alpha * (nu[0] - r) / initAlpha
	nu[1] -= alpha * (nu[1] - g) / initAlpha
	nu[2] -= alpha * (nu[2] - b) / initAlpha
}

func (q *NeuQuant) alterNeighbours(rad, i, r, g, b int) {
	lo := max(i-rad, -1)
	hi := min(i+rad, len(q.network))
	j, k := i+1, i-1
	for m := 1; j < hi || k > lo; m++ {
		a := q.radPower[m]
		if j < hi {
			nu := &q.network[j]
			nu[0] -= a * (nu[0] - r) / alphaRadBias
			nu[1] -= a * (nu[1] - g) / alphaRadBias
			nu[2] -= a * (nu[2] - b) / alphaRadBias
			j++
		}
		if k > lo {
			nu := &q.network[k]
			nu[0] -= a * (nu[0] - r) / alphaRadBias
			nu[1] -= a * (nu[1] - g) / alphaRadBias
			nu[2] -= a * (nu[2] - b) / alphaRadBias
			k--
		}
	}
}

// unbias converts the network to 8-bit colors.
func (q *NeuQuant) unbias() {
	q.palette = make([]color.RGBA, len(q.network))
	for i, nu := range q.network {
		var c [3]uint8
		for j, v := range nu {
			c[j] = uint8(min(max((v+(1<<(netBiasShift-1)))>>netBiasShift, 0), 255))
		}
		q.palette[i] = color.RGBA{c[0], c[1], c[2], 0xff}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
