package tree

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestFitRegressionStepFunction(t *testing.T) {
	// y is a clean step at x=0.5, a single split recovers it exactly.
	X := mat.NewDense(6, 1, []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9})
	y := []float64{1, 1, 1, 5, 5, 5}

	tr, err := Fit(X, y, Params{MaxDepth: 2, MinSamplesLeaf: 1})
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	tests := []struct {
		x    float64
		want float64
	}{
		{0.0, 1},
		{0.4, 1},
		{0.6, 5},
		{1.0, 5},
	}
	for _, tt := range tests {
		if got := tr.PredictRow([]float64{tt.x}); got != tt.want {
			t.Errorf("PredictRow(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestFitRespectsMinSamplesLeaf(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := []float64{1, 2, 3, 4}

	tr, err := Fit(X, y, Params{MaxDepth: 10, MinSamplesLeaf: 4})
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if len(tr.Nodes) != 1 {
		t.Errorf("tree should be a single leaf, got %d nodes", len(tr.Nodes))
	}
	want := 2.5 // mean of y
	if got := tr.PredictRow([]float64{2}); got != want {
		t.Errorf("PredictRow = %v, want %v", got, want)
	}
}

func TestFitClassification(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{0, 0.1, 0.2, 0.3, 0.7, 0.8, 0.9, 1.0})
	y := []float64{0, 0, 0, 0, 1, 1, 1, 1}

	tr, err := Fit(X, y, Params{MaxDepth: 3, MinSamplesLeaf: 1, Classification: true})
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if got := tr.PredictRow([]float64{0.15}); got != 0 {
		t.Errorf("PredictRow(0.15) = %v, want class 0", got)
	}
	if got := tr.PredictRow([]float64{0.85}); got != 1 {
		t.Errorf("PredictRow(0.85) = %v, want class 1", got)
	}
}

func TestFitDimensionMismatch(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	if _, err := Fit(X, []float64{1, 2}, Params{}); err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestBaggingRegression(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))

	// Noisy linear target, the bagged mean should land near the local mean.
	n := 200
	X := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		X.Set(i, 0, x)
		y[i] = 2*x + 0.05*rng.NormFloat64()
	}

	bag, err := FitBagging(X, y, Params{MaxDepth: 4, MinSamplesLeaf: 5}, 20, rng)
	if err != nil {
		t.Fatalf("FitBagging() error = %v", err)
	}
	if len(bag.Trees) != 20 {
		t.Fatalf("got %d trees, want 20", len(bag.Trees))
	}

	got := bag.PredictRow([]float64{0.5})
	if math.Abs(got-1.0) > 0.3 {
		t.Errorf("PredictRow(0.5) = %v, want approximately 1.0", got)
	}
}

func TestBaggingDeterministicForSeed(t *testing.T) {
	X := mat.NewDense(10, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	y := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	fit := func() float64 {
		rng := rand.New(rand.NewPCG(7, 7))
		bag, err := FitBagging(X, y, Params{MaxDepth: 3, MinSamplesLeaf: 2}, 10, rng)
		if err != nil {
			t.Fatalf("FitBagging() error = %v", err)
		}
		return bag.PredictRow([]float64{5.5})
	}

	if a, b := fit(), fit(); a != b {
		t.Errorf("same seed produced different predictions: %v vs %v", a, b)
	}
}
