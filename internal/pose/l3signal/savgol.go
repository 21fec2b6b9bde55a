package l3signal

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrShortSeries is returned by SavGolFilter.Apply when the input is shorter
// than the filter window.
var ErrShortSeries = errors.New("series shorter than window")

// SavGolFilter is a Savitzky-Golay smoothing filter: each output sample is
// the value at that position of a least-squares polynomial of order
// PolyOrder fitted over a window of WindowLength samples.
//
// The filter stores the full projection (hat) matrix of the local fit.
// Its middle row holds the classic convolution coefficients used for
// interior samples; the other rows evaluate the polynomial fitted to the
// first or last window at the edge positions.
type SavGolFilter struct {
	WindowLength int
	PolyOrder    int

	hat *mat.Dense // WindowLength x WindowLength
}

// NewSavGolFilter builds a filter for an odd window length w and polynomial
// order p < w.
func NewSavGolFilter(w, p int) (*SavGolFilter, error) {
	if w < 1 || w%2 == 0 {
		return nil, fmt.Errorf("window length must be a positive odd number, got %d", w)
	}
	if p < 0 || p >= w {
		return nil, fmt.Errorf("polynomial order must be in [0,%d), got %d", w, p)
	}

	hat, err := savGolHat(w, p)
	if err != nil {
		return nil, err
	}
	return &SavGolFilter{WindowLength: w, PolyOrder: p, hat: hat}, nil
}

// savGolHat returns H = Q1·Q1ᵀ where Q1 spans the columns of the w x (p+1)
// Vandermonde matrix over window offsets. H·y is the least-squares
// polynomial fit of y evaluated at every window position.
func savGolHat(w, p int) (*mat.Dense, error) {
	half := (w - 1) / 2
	scale := 1.0
	if half > 0 {
		scale = 1 / float64(half)
	}

	vander := mat.NewDense(w, p+1, nil)
	for i := 0; i < w; i++ {
		t := float64(i-half) * scale
		v := 1.0
		for k := 0; k <= p; k++ {
			vander.Set(i, k, v)
			v *= t
		}
	}

	var qr mat.QR
	qr.Factorize(vander)
	var q mat.Dense
	qr.QTo(&q)

	q1 := q.Slice(0, w, 0, p+1)
	hat := mat.NewDense(w, w, nil)
	hat.Mul(q1, q1.T())

	for i := 0; i < w; i++ {
		if sum := floats.Sum(hat.RawRowView(i)); sum < 0.5 || sum > 1.5 {
			// Every row of a projection that reproduces constants sums to 1.
			return nil, fmt.Errorf("savitzky-golay fit is ill-conditioned (w=%d p=%d)", w, p)
		}
	}
	return hat, nil
}

// Coefficients returns the convolution coefficients applied to interior
// samples, ordered from the oldest to the newest sample in the window.
func (f *SavGolFilter) Coefficients() []float64 {
	half := (f.WindowLength - 1) / 2
	out := make([]float64, f.WindowLength)
	copy(out, f.hat.RawRowView(half))
	return out
}

// Apply returns the smoothed series. y must hold at least WindowLength
// samples and contain no NaN values. The first and last WindowLength/2
// outputs are taken from the polynomial fitted to the first and last window.
func (f *SavGolFilter) Apply(y []float64) ([]float64, error) {
	w := f.WindowLength
	n := len(y)
	if n < w {
		return nil, fmt.Errorf("%w: %d < %d", ErrShortSeries, n, w)
	}
	half := (w - 1) / 2
	out := make([]float64, n)

	center := f.hat.RawRowView(half)
	for i := half; i < n-half; i++ {
		out[i] = floats.Dot(center, y[i-half:i+half+1])
	}

	head := y[:w]
	tail := y[n-w:]
	for i := 0; i < half; i++ {
		out[i] = floats.Dot(f.hat.RawRowView(i), head)
		out[n-half+i] = floats.Dot(f.hat.RawRowView(half+1+i), tail)
	}
	return out, nil
}
