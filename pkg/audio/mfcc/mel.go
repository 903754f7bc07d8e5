package mfcc

import "math"

// WindowFunc names the taper applied to each frame before the FFT.
type WindowFunc string

const (
	WindowHann    WindowFunc = "hann"
	WindowHamming WindowFunc = "hamming"
	WindowRect    WindowFunc = "rect"
)

// makeWindow generates a symmetric window of the given length.
func makeWindow(fn WindowFunc, n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n-1)
		switch fn {
		case WindowHamming:
			w[i] = 0.54 - 0.46*math.Cos(x)
		case WindowRect:
			w[i] = 1
		default:
			w[i] = 0.5 - 0.5*math.Cos(x)
		}
	}
	return w
}

// hzToMel converts frequency in Hz to the HTK mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts HTK mel scale frequency back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterBank creates the triangular mel filterbank matrix.
// Returns [numFilters][fftSize/2+1].
func melFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	halfFFT := fftSize/2 + 1
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)

	// numFilters + 2 equally spaced mel points
	bins := make([]int, numFilters+2)
	step := (highMel - lowMel) / float64(numFilters+1)
	for i := range bins {
		hz := melToHz(lowMel + float64(i)*step)
		bin := int(math.Floor(hz * float64(fftSize+1) / float64(sampleRate)))
		bins[i] = min(bin, halfFFT-1)
	}

	// Every filter spans at least one bin.
	for i := 1; i < len(bins); i++ {
		if bins[i] <= bins[i-1] {
			bins[i] = bins[i-1] + 1
		}
	}

	bank := make([][]float64, numFilters)
	for m := range bank {
		filter := make([]float64, halfFFT)
		left, center, right := bins[m], bins[m+1], bins[m+2]

		for k := left; k < center && k < halfFFT; k++ {
			filter[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k <= right && k < halfFFT; k++ {
			filter[k] = float64(right-k) / float64(right-center)
		}
		bank[m] = filter
	}
	return bank
}

// dctTable returns the orthonormal DCT-II basis truncated to the first
// numCoeffs rows: table[k][m] = s(k) * cos(pi*k*(2m+1) / (2n)).
func dctTable(numCoeffs, n int) [][]float64 {
	table := make([][]float64, numCoeffs)
	s0 := math.Sqrt(1 / float64(n))
	sk := math.Sqrt(2 / float64(n))
	for k := range table {
		row := make([]float64, n)
		s := sk
		if k == 0 {
			s = s0
		}
		for m := range row {
			row[m] = s * math.Cos(math.Pi*float64(k)*float64(2*m+1)/float64(2*n))
		}
		table[k] = row
	}
	return table
}
