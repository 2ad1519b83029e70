package region

import (
	"image"
	"sync"
)

// Button identifies which of the two selectable regions a gesture edits.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
)

// Selection tracks two rectangles drawn by press-drag-release gestures, the
// left button editing the first and the right button the second. Committed
// rectangles change only on release. It is safe for concurrent use, so UI
// callbacks may drive it while a capture loop reads Rects.
type Selection struct {
	mu       sync.Mutex
	rects    [2]image.Rectangle
	active   [2]bool
	anchor   [2]image.Point
	pending  [2]image.Rectangle
	onChange func(b Button, r image.Rectangle)
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{}
}

// OnChange registers fn to run after a rectangle is committed. fn runs
// without the selection lock held.
func (s *Selection) OnChange(fn func(b Button, r image.Rectangle)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Press starts a gesture for b at pt.
func (s *Selection) Press(b Button, pt image.Point) {
	if !valid(b) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[b] = true
	s.anchor[b] = pt
	s.pending[b] = image.Rectangle{Min: pt, Max: pt}
}

// Move extends every gesture in progress to pt.
func (s *Selection) Move(pt image.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for b := range s.active {
		if s.active[b] {
			s.pending[b] = image.Rectangle{Min: s.anchor[b], Max: pt}.Canon()
		}
	}
}

// Release ends the gesture for b and commits its rectangle unless it is
// empty, in which case the previous rectangle is kept.
func (s *Selection) Release(b Button) {
	if !valid(b) {
		return
	}

	s.mu.Lock()
	if !s.active[b] {
		s.mu.Unlock()
		return
	}
	s.active[b] = false
	r := s.pending[b]
	if r.Empty() {
		s.mu.Unlock()
		return
	}
	s.rects[b] = r
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(b, r)
	}
}

// Set commits r for b directly.
func (s *Selection) Set(b Button, r image.Rectangle) {
	if !valid(b) {
		return
	}
	s.mu.Lock()
	s.rects[b] = r.Canon()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(b, r.Canon())
	}
}

// Rects returns the committed rectangles.
func (s *Selection) Rects() [2]image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rects
}

// Pending returns the rectangle being drawn for b and whether a gesture is
// in progress.
func (s *Selection) Pending(b Button) (image.Rectangle, bool) {
	if !valid(b) {
		return image.Rectangle{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[b], s.active[b]
}

func valid(b Button) bool {
	return b == ButtonLeft || b == ButtonRight
}
