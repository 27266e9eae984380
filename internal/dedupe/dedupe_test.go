package dedupe

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/draw"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("could not write %s: %v", name, err)
	}
	return path
}

func TestFindExactGroupsSameContent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", []byte("content-one"))
	b := writeFile(t, dir, "b.jpg", []byte("content-two"))
	c := writeFile(t, dir, "c.jpg", []byte("content-one"))

	groups, err := FindExact(context.Background(), []string{a, b, c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].Paths) != 2 || groups[0].Paths[0] != a || groups[0].Paths[1] != c {
		t.Errorf("expected group [a c], got %v", groups[0].Paths)
	}
}

func TestFindExactSameSizeDifferentContent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", []byte("aaaaaaaa"))
	b := writeFile(t, dir, "b.jpg", []byte("bbbbbbbb"))

	groups, err := FindExact(context.Background(), []string{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups for distinct content, got %v", groups)
	}
}

func TestFindExactPreservesInputOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", []byte("first-pair"))
	b := writeFile(t, dir, "b.jpg", []byte("second-pair!"))
	c := writeFile(t, dir, "c.jpg", []byte("first-pair"))
	d := writeFile(t, dir, "d.jpg", []byte("second-pair!"))

	groups, err := FindExact(context.Background(), []string{a, b, c, d})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Paths[0] != a {
		t.Errorf("expected first group to start with %s, got %s", a, groups[0].Paths[0])
	}
	if groups[1].Paths[0] != b {
		t.Errorf("expected second group to start with %s, got %s", b, groups[1].Paths[0])
	}
}

// gradientImage produces a smooth horizontal luminance ramp.
func gradientImage(width, height int, reversed bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(x * 255 / (width - 1))
			if reversed {
				v = 255 - v
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("could not create %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("could not encode %s: %v", name, err)
	}
	return path
}

func TestFindNearGroupsResizedCopies(t *testing.T) {
	dir := t.TempDir()

	original := gradientImage(256, 192, false)
	smaller := image.NewRGBA(image.Rect(0, 0, 128, 96))
	draw.BiLinear.Scale(smaller, smaller.Bounds(), original, original.Bounds(), draw.Over, nil)

	big := writePNG(t, dir, "big.png", original)
	small := writePNG(t, dir, "small.png", smaller)
	other := writePNG(t, dir, "other.png", gradientImage(256, 192, true))

	groups, err := FindNear(context.Background(), []string{big, small, other}, DefaultNearThreshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d: %v", len(groups), groups)
	}
	if len(groups[0].Paths) != 2 || groups[0].Paths[0] != big || groups[0].Paths[1] != small {
		t.Errorf("expected [big small], got %v", groups[0].Paths)
	}
}

func TestFindNearSkipsUndecodableFiles(t *testing.T) {
	dir := t.TempDir()
	junk := writeFile(t, dir, "junk.png", []byte("not an image"))
	good := writePNG(t, dir, "good.png", gradientImage(64, 64, false))

	groups, err := FindNear(context.Background(), []string{junk, good}, DefaultNearThreshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %v", groups)
	}
}

func TestSignatureDistance(t *testing.T) {
	a := Signature{Perceptual: 0xF0F0F0F0F0F0F0F0, Gradient: 0}
	if got := a.Distance(a); got != 0 {
		t.Errorf("expected distance 0 for identical signatures, got %d", got)
	}

	b := Signature{Perceptual: 0xF0F0F0F0F0F0F0F1, Gradient: 0b111}
	if got := a.Distance(b); got != 3 {
		t.Errorf("expected distance 3 (worse of the two hashes), got %d", got)
	}
}

func TestSignatureForStableAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "img.png", gradientImage(100, 80, false))

	first, err := SignatureFor(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := SignatureFor(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected stable signature, got %s then %s", first, second)
	}
}
