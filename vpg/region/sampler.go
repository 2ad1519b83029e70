package region

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// ErrInvalidRegion is returned for an empty rectangle or one that is not
// contained in the image bounds.
var ErrInvalidRegion = errors.New("region: invalid region")

// Color holds per-channel means on a 0-255 scale.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Sample is the colour mean of one frame region.
type Sample struct {
	Color
	// DT is the time since the previous sample, 0 for the first.
	DT time.Duration `json:"dt"`
	At time.Time     `json:"at"`
}

// QuadrantSample holds the means of the four quadrants of a region, indexed
// clockwise from the top-right (|3|0| over |2|1|), and of the whole region.
type QuadrantSample struct {
	Quadrants [4]Color      `json:"quadrants"`
	Whole     Color         `json:"whole"`
	DT        time.Duration `json:"dt"`
	At        time.Time     `json:"at"`
}

// Option configures a Sampler.
type Option func(*options)

type options struct {
	clock func() time.Time
}

// WithClock replaces time.Now as the time source.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Sampler measures region means frame by frame. It is not safe for
// concurrent use.
type Sampler struct {
	clock func() time.Time
	last  time.Time
	count int
}

// NewSampler returns a sampler using the wall clock unless WithClock is set.
func NewSampler(opts ...Option) *Sampler {
	o := applyOptions(opts)
	return &Sampler{clock: o.clock}
}

// Count returns the number of successful samples taken.
func (s *Sampler) Count() int { return s.count }

// Reset forgets the previous sample time, so the next DT is 0.
func (s *Sampler) Reset() {
	s.last = time.Time{}
	s.count = 0
}

// Sample returns the mean colour of img over r.
func (s *Sampler) Sample(img image.Image, r image.Rectangle) (Sample, error) {
	if err := validate(img, r); err != nil {
		return Sample{}, err
	}

	c := mean(img, r)
	at, dt := s.tick()
	return Sample{Color: c, DT: dt, At: at}, nil
}

// SampleQuadrants splits r at its centre and returns the mean of each
// quadrant and of the whole region. r must be at least 2x2 pixels.
func (s *Sampler) SampleQuadrants(img image.Image, r image.Rectangle) (QuadrantSample, error) {
	if err := validate(img, r); err != nil {
		return QuadrantSample{}, err
	}
	if r.Dx() < 2 || r.Dy() < 2 {
		return QuadrantSample{}, fmt.Errorf("%w: %v is too small to split", ErrInvalidRegion, r)
	}

	var q QuadrantSample
	for i, quad := range Quadrants(r) {
		q.Quadrants[i] = mean(img, quad)
	}
	q.Whole = mean(img, r)
	q.At, q.DT = s.tick()
	return q, nil
}

// Quadrants splits r at its centre, ordered clockwise from the top-right.
func Quadrants(r image.Rectangle) [4]image.Rectangle {
	mid := image.Pt(r.Min.X+r.Dx()/2, r.Min.Y+r.Dy()/2)
	return [4]image.Rectangle{
		image.Rect(mid.X, r.Min.Y, r.Max.X, mid.Y),
		image.Rect(mid.X, mid.Y, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, mid.Y, mid.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, mid.X, mid.Y),
	}
}

func (s *Sampler) tick() (time.Time, time.Duration) {
	now := s.clock()
	var dt time.Duration
	if s.count > 0 {
		dt = now.Sub(s.last)
	}
	s.last = now
	s.count++
	return now, dt
}

func validate(img image.Image, r image.Rectangle) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidRegion)
	}
	if r.Empty() || !r.In(img.Bounds()) {
		return fmt.Errorf("%w: %v not within %v", ErrInvalidRegion, r, img.Bounds())
	}
	return nil
}

func mean(img image.Image, r image.Rectangle) Color {
	var sr, sg, sb float64

	switch m := img.(type) {
	case *image.RGBA:
		sr, sg, sb = sum8(m.Pix, m.Stride, m.PixOffset(r.Min.X, r.Min.Y), r.Dx(), r.Dy())
	case *image.NRGBA:
		sr, sg, sb = sum8(m.Pix, m.Stride, m.PixOffset(r.Min.X, r.Min.Y), r.Dx(), r.Dy())
	default:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				cr, cg, cb, _ := img.At(x, y).RGBA()
				sr += float64(cr)
				sg += float64(cg)
				sb += float64(cb)
			}
		}
		sr, sg, sb = sr/257, sg/257, sb/257
	}

	n := float64(r.Dx() * r.Dy())
	return Color{R: sr / n, G: sg / n, B: sb / n}
}

// sum8 sums 8-bit RGBA rows starting at offset.
func sum8(pix []uint8, stride, offset, w, h int) (r, g, b float64) {
	var ir, ig, ib uint64
	for y := 0; y < h; y++ {
		row := pix[offset+y*stride : offset+y*stride+4*w]
		for i := 0; i < len(row); i += 4 {
			ir += uint64(row[i])
			ig += uint64(row[i+1])
			ib += uint64(row[i+2])
		}
	}
	return float64(ir), float64(ig), float64(ib)
}
