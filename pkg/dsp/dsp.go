// Package dsp holds the small signal-processing kernel shared by the
// evidence producers: an in-place radix-2 FFT, window functions,
// pooled log spectra, moving-average smoothing and sample-rate
// conversion.
package dsp

import (
	"errors"
	"fmt"
	"math"
	"sort"

	resampling "github.com/tphakala/go-audio-resampling"
)

// ErrInput reports an argument a kernel cannot work with.
var ErrInput = errors.New("dsp: bad input")

// FFT performs an in-place radix-2 Cooley-Tukey FFT.
// re and im must have the same power-of-2 length.
func FFT(re, im []float64) {
	n := len(re)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation
	j := 0
	for i := 0; i < n-1; i++ {
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
		k := n >> 1
		for k <= j {
			j -= k
			k >>= 1
		}
		j += k
	}

	// Cooley-Tukey butterfly
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		angle := -2.0 * math.Pi / float64(size)
		wR := math.Cos(angle)
		wI := math.Sin(angle)

		for start := 0; start < n; start += size {
			tR, tI := 1.0, 0.0
			for k := 0; k < half; k++ {
				u := start + k
				v := u + half

				tmpR := tR*re[v] - tI*im[v]
				tmpI := tR*im[v] + tI*re[v]

				re[v] = re[u] - tmpR
				im[v] = im[u] - tmpI
				re[u] += tmpR
				im[u] += tmpI

				tR, tI = tR*wR-tI*wI, tR*wI+tI*wR
			}
		}
	}
}

// NextPow2 returns the smallest power of two >= n.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Hann returns an n-point Hann window.
func Hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// PowerSpectrum applies a Hann window, zero-pads to the next power of
// two and returns the one-sided power spectrum (len/2+1 bins).
func PowerSpectrum(frame []float64) []float64 {
	n := NextPow2(len(frame))
	re := make([]float64, n)
	im := make([]float64, n)
	win := Hann(len(frame))
	for i, s := range frame {
		re[i] = s * win[i]
	}
	FFT(re, im)

	half := n/2 + 1
	power := make([]float64, half)
	for i := 0; i < half; i++ {
		power[i] = re[i]*re[i] + im[i]*im[i]
	}
	return power
}

// PooledLogSpectrum pools the power spectrum of a frame into bins
// equal-width chunks and returns log1p of each pooled value. Spectra
// shorter than bins are zero-padded instead of pooled.
func PooledLogSpectrum(frame []float64, bins int) []float64 {
	power := PowerSpectrum(frame)
	pooled := make([]float64, bins)
	if len(power) < bins {
		copy(pooled, power)
	} else {
		// Chunk sizes follow the numpy array_split convention: the
		// first len(power)%bins chunks get one extra element.
		base := len(power) / bins
		extra := len(power) % bins
		pos := 0
		for b := 0; b < bins; b++ {
			size := base
			if b < extra {
				size++
			}
			sum := 0.0
			for _, v := range power[pos : pos+size] {
				sum += v
			}
			pooled[b] = sum / float64(size)
			pos += size
		}
	}
	for i, v := range pooled {
		pooled[i] = math.Log1p(v)
	}
	return pooled
}

// CosineSimilarity returns the cosine of the angle between a and b,
// with a small epsilon guarding the zero-vector case.
func CosineSimilarity(a, b []float64) float64 {
	const eps = 1e-8
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + eps)
}

// MovingAverage smooths x with a centered box filter of width win,
// treating samples outside the signal as zero. The output has the
// same length as x.
func MovingAverage(x []float64, win int) []float64 {
	if win <= 1 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	out := make([]float64, len(x))
	offset := (win - 1) / 2
	inv := 1.0 / float64(win)
	for i := range out {
		lo := i + offset - win + 1
		hi := i + offset
		if lo < 0 {
			lo = 0
		}
		if hi >= len(x) {
			hi = len(x) - 1
		}
		sum := 0.0
		for k := lo; k <= hi; k++ {
			sum += x[k]
		}
		out[i] = sum * inv
	}
	return out
}

// Percentile returns the p-th percentile of x with linear
// interpolation between order statistics. p is in [0, 100].
func Percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Resample converts mono samples between sample rates using a
// high-quality polyphase resampler. Equal rates return a copy.
func Resample(samples []float64, inRate, outRate int) ([]float64, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("%w: rates %d -> %d", ErrInput, inRate, outRate)
	}
	if inRate == outRate {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}
	cfg := &resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	}
	rs, err := resampling.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("dsp: create resampler: %w", err)
	}
	out, err := rs.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("dsp: resample: %w", err)
	}
	return out, nil
}
