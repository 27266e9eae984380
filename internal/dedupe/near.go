package dedupe

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"math/bits"
	"os"
	"sort"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// DefaultNearThreshold is the Hamming distance under which two signatures
// count as the same picture. 10 bits out of 64 tolerates recompression and
// mild resizing without pulling in unrelated photos.
const DefaultNearThreshold = 10

// Signature is a pair of 64-bit perceptual hashes for one image. The DCT
// hash survives global changes (brightness, compression); the gradient hash
// is sensitive to structure. Requiring both to agree keeps false positives
// down.
type Signature struct {
	Perceptual uint64
	Gradient   uint64
}

// String renders the signature as two hex words, stable for logs and JSON.
func (s Signature) String() string {
	return fmt.Sprintf("%016x:%016x", s.Perceptual, s.Gradient)
}

// Distance returns the larger of the two per-hash Hamming distances.
func (s Signature) Distance(other Signature) int {
	p := bits.OnesCount64(s.Perceptual ^ other.Perceptual)
	g := bits.OnesCount64(s.Gradient ^ other.Gradient)
	if p > g {
		return p
	}
	return g
}

// SignatureFor decodes the image file and computes its signature.
func SignatureFor(path string) (Signature, error) {
	f, err := os.Open(path)
	if err != nil {
		return Signature{}, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Signature{}, fmt.Errorf("could not decode %s: %w", path, err)
	}

	return Signature{
		Perceptual: perceptualHash(img),
		Gradient:   gradientHash(img),
	}, nil
}

// FindNear groups visually similar files. Grouping is greedy in input
// order: the first ungrouped file becomes a group's reference, and every
// later ungrouped file within threshold of the reference joins it. Files
// that fail to decode are skipped silently; dedupe runs over mixed trees.
func FindNear(ctx context.Context, files []string, threshold int) ([]Group, error) {
	if threshold <= 0 {
		threshold = DefaultNearThreshold
	}

	type signed struct {
		path string
		sig  Signature
	}
	var signatures []signed
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sig, err := SignatureFor(path)
		if err != nil {
			continue
		}
		signatures = append(signatures, signed{path: path, sig: sig})
	}

	var groups []Group
	grouped := make([]bool, len(signatures))
	for i := range signatures {
		if grouped[i] {
			continue
		}
		group := Group{Paths: []string{signatures[i].path}}
		grouped[i] = true

		for j := i + 1; j < len(signatures); j++ {
			if grouped[j] {
				continue
			}
			if signatures[i].sig.Distance(signatures[j].sig) <= threshold {
				group.Paths = append(group.Paths, signatures[j].path)
				grouped[j] = true
			}
		}

		if len(group.Paths) > 1 {
			groups = append(groups, group)
		}
	}

	return groups, nil
}

const dctSize = 32

// perceptualHash reduces the image to its low-frequency DCT coefficients
// and bits each one against their median.
func perceptualHash(img image.Image) uint64 {
	luma := lumaGrid(scale(img, dctSize, dctSize), dctSize, dctSize)
	coeffs := dct2d(luma)

	// low frequencies, DC term excluded
	low := make([]float64, 0, 64)
	for v := 0; v < 8; v++ {
		for u := 0; u < 8; u++ {
			if u == 0 && v == 0 {
				continue
			}
			low = append(low, coeffs[v][u])
		}
	}
	low = append(low, coeffs[8][0]) // pad back to 64 bits

	sorted := append([]float64(nil), low...)
	sort.Float64s(sorted)
	median := (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2

	var hash uint64
	for i, c := range low {
		if c > median {
			hash |= 1 << (63 - i)
		}
	}
	return hash
}

// gradientHash compares horizontally adjacent pixels on a 9x8 thumbnail.
func gradientHash(img image.Image) uint64 {
	luma := lumaGrid(scale(img, 9, 8), 9, 8)

	var hash uint64
	bit := 63
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if luma[y][x] > luma[y][x+1] {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

func scale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// lumaGrid converts to row-major BT.601 luma values.
func lumaGrid(img *image.RGBA, width, height int) [][]float64 {
	luma := make([][]float64, height)
	for y := 0; y < height; y++ {
		luma[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			luma[y][x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return luma
}

// dct2d computes a square DCT-II with a precomputed cosine table.
func dct2d(grid [][]float64) [][]float64 {
	n := len(grid)

	cos := make([][]float64, n)
	for k := range cos {
		cos[k] = make([]float64, n)
		for i := 0; i < n; i++ {
			cos[k][i] = math.Cos(math.Pi * float64(k) * (2*float64(i) + 1) / (2 * float64(n)))
		}
	}

	out := make([][]float64, n)
	for v := range out {
		out[v] = make([]float64, n)
		for u := 0; u < n; u++ {
			var sum float64
			for y := 0; y < n; y++ {
				for x := 0; x < n; x++ {
					sum += grid[y][x] * cos[u][x] * cos[v][y]
				}
			}
			out[v][u] = sum
		}
	}
	return out
}
