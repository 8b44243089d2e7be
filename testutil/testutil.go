package testutil

import (
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gapgo/structure"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float64 in a loop).
func (r *RNG) FillUniform(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float64()
	}
}

// UniformMatrix generates a rows x cols matrix with values in [0, 1).
func (r *RNG) UniformMatrix(rows, cols int) *mat.Dense {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = r.rand.Float64()
	}
	return mat.NewDense(rows, cols, data)
}

// GaussianMatrix generates a rows x cols matrix with standard normal values.
func (r *RNG) GaussianMatrix(rows, cols int) *mat.Dense {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = r.rand.NormFloat64()
	}
	return mat.NewDense(rows, cols, data)
}

// UnitRowMatrix generates a matrix of L2-normalized rows (points on the
// hypersphere). Normalized descriptors land here, so kernel tests use this
// shape.
func (r *RNG) UnitRowMatrix(rows, cols int) *mat.Dense {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		var norm float64
		for j := range row {
			v := r.rand.NormFloat64()
			row[j] = v
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			row[0] = 1
			continue
		}
		for j := range row {
			row[j] /= norm
		}
	}
	return mat.NewDense(rows, cols, data)
}

// ClusteredMatrix generates rows grouped around the given number of random
// cluster centers with uniform noise of the given spread. Useful for FPS
// tests where selections should hit distinct clusters.
func (r *RNG) ClusteredMatrix(rows, cols, clusters int, spread float64) *mat.Dense {
	r.mu.Lock()
	defer r.mu.Unlock()

	centers := make([]float64, clusters*cols)
	for i := range centers {
		centers[i] = r.rand.Float64() * 10
	}

	data := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		c := i % clusters
		for j := 0; j < cols; j++ {
			data[i*cols+j] = centers[c*cols+j] + (r.rand.Float64()*2-1)*spread
		}
	}
	return mat.NewDense(rows, cols, data)
}

// Structures generates n synthetic structures with the given species
// alternating over atomsPerStructure atoms, random positions in a cube, and
// an energy property derived from a per-species contribution plus the
// supplied baseline offsets.
func (r *RNG) Structures(n, atomsPerStructure int, species []int, energyName string, perSpeciesEnergy map[int]float64) []*structure.Structure {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*structure.Structure, n)
	for i := range out {
		s := &structure.Structure{
			Positions: make([][3]float64, atomsPerStructure),
			Species:   make([]int, atomsPerStructure),
			Cell:      [3][3]float64{{10, 0, 0}, {0, 10, 0}, {0, 0, 10}},
			PBC:       [3]bool{true, true, true},
			Info:      map[string]float64{},
		}
		energy := 0.0
		for a := 0; a < atomsPerStructure; a++ {
			sp := species[(i+a)%len(species)]
			s.Species[a] = sp
			for k := 0; k < 3; k++ {
				s.Positions[a][k] = r.rand.Float64() * 10
			}
			energy += perSpeciesEnergy[sp]
		}
		s.Info[energyName] = energy
		out[i] = s
	}
	return out
}
