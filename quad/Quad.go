package quad

import (
	set "github.com/deckarep/golang-set"
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

// Capacity is the number of entries a node holds before it's split
var Capacity = 8

// PointLike objects can be stored in a Quad
type PointLike interface {
	GetPoint() orb.Point
	SetPoint(orb.Point)
}

// RectLike objects can be stored in a Quad
type RectLike interface {
	GetBound() orb.Bound
	SetBound(orb.Bound)
}

// RectAcceptor allows searching among RectLike objects
type RectAcceptor func(RectLike) bool

// AcceptAll can be used to not filter rectlike
func AcceptAll(RectLike) bool {
	return true
}

// Quad stores and finds RectLike and PointLike objects on a bounded floor.
// Points are kept in leaves, rects in the deepest node that contains them.
type Quad struct {
	root     *node
	maxDepth int
	points   int
	rects    int
}

type node struct {
	bound  orb.Bound
	depth  int
	points []PointLike
	rects  []RectLike
	sub    *[4]*node // ul, ur, lr, ll
}

// NewQuad creates an empty tree covering world
func NewQuad(world orb.Bound, maxDepth int) *Quad {
	return &Quad{
		root:     &node{bound: world},
		maxDepth: maxDepth,
	}
}

// Bound returns the area covered by the tree
func (q *Quad) Bound() orb.Bound {
	return q.root.bound
}

// CountPoints is the number of PointLike stored
func (q *Quad) CountPoints() int {
	return q.points
}

// CountRects is the number of RectLike stored
func (q *Quad) CountRects() int {
	return q.rects
}

func split4(b orb.Bound) [4]orb.Bound {
	c := b.Center()
	return [4]orb.Bound{
		{Min: orb.Point{b.Min[0], b.Min[1]}, Max: orb.Point{c[0], c[1]}}, // upper left (y grows down)
		{Min: orb.Point{c[0], b.Min[1]}, Max: orb.Point{b.Max[0], c[1]}}, // upper right
		{Min: orb.Point{c[0], c[1]}, Max: orb.Point{b.Max[0], b.Max[1]}}, // lower right
		{Min: orb.Point{b.Min[0], c[1]}, Max: orb.Point{c[0], b.Max[1]}}, // lower left
	}
}

// childFor picks the sub node a point belongs to
func (n *node) childFor(p orb.Point) *node {
	c := n.bound.Center()
	if p[0] < c[0] {
		if p[1] < c[1] {
			return n.sub[0]
		}
		return n.sub[3]
	}
	if p[1] < c[1] {
		return n.sub[1]
	}
	return n.sub[2]
}

func contains(outer, inner orb.Bound) bool {
	return outer.Min[0] <= inner.Min[0] && outer.Min[1] <= inner.Min[1] &&
		outer.Max[0] >= inner.Max[0] && outer.Max[1] >= inner.Max[1]
}

// childContaining returns the sub node which entirely contains b, or nil
func (n *node) childContaining(b orb.Bound) *node {
	for _, child := range n.sub {
		if contains(child.bound, b) {
			return child
		}
	}
	return nil
}

func (n *node) size() int {
	return len(n.points) + len(n.rects)
}

func (q *Quad) split(n *node) {
	bounds := split4(n.bound)
	n.sub = &[4]*node{}
	for i, b := range bounds {
		n.sub[i] = &node{bound: b, depth: n.depth + 1}
	}

	points := n.points
	n.points = nil
	for _, p := range points {
		child := n.childFor(p.GetPoint())
		child.points = append(child.points, p)
	}

	kept := n.rects[:0]
	for _, r := range n.rects {
		if child := n.childContaining(r.GetBound()); child != nil {
			child.rects = append(child.rects, r)
		} else {
			kept = append(kept, r)
		}
	}
	n.rects = kept

	for _, child := range n.sub {
		q.maybeSplit(child)
	}
}

func (q *Quad) maybeSplit(n *node) {
	if n.sub == nil && n.size() > Capacity && n.depth < q.maxDepth {
		q.split(n)
	}
}

// AddPoint adds a PointLike to the tree
func (q *Quad) AddPoint(p PointLike) {
	n := q.root
	for n.sub != nil {
		n = n.childFor(p.GetPoint())
	}
	n.points = append(n.points, p)
	q.points++
	q.maybeSplit(n)
}

// RemovePoint removes a point from the tree. The point must still be
// at the position it had when it was added or last moved.
func (q *Quad) RemovePoint(p PointLike) bool {
	n := q.root
	for n.sub != nil {
		n = n.childFor(p.GetPoint())
	}
	for i, each := range n.points {
		if each == p {
			n.points = append(n.points[:i], n.points[i+1:]...)
			q.points--
			return true
		}
	}
	log.Warn("quad: removing inexistant point")
	return false
}

// MovePoint moves a point in the tree
func (q *Quad) MovePoint(p PointLike, dest orb.Point) {
	if !q.RemovePoint(p) {
		return
	}
	p.SetPoint(dest)
	q.AddPoint(p)
}

// AddRect adds a RectLike to the tree
func (q *Quad) AddRect(r RectLike) {
	b := r.GetBound()
	n := q.root
	for n.sub != nil {
		child := n.childContaining(b)
		if child == nil {
			break
		}
		n = child
	}
	n.rects = append(n.rects, r)
	q.rects++
	q.maybeSplit(n)
}

// RemoveRect removes a rect from the tree. Its bound must not have changed.
func (q *Quad) RemoveRect(r RectLike) bool {
	b := r.GetBound()
	n := q.root
	for {
		for i, each := range n.rects {
			if each == r {
				n.rects = append(n.rects[:i], n.rects[i+1:]...)
				q.rects--
				return true
			}
		}
		if n.sub == nil {
			break
		}
		n = n.childContaining(b)
		if n == nil {
			break
		}
	}
	log.Warn("quad: removing inexistant rect")
	return false
}

// MoveRect moves a rect in the tree
func (q *Quad) MoveRect(r RectLike, b orb.Bound) {
	q.RemoveRect(r)
	r.SetBound(b)
	q.AddRect(r)
}

// GetPointsIn returns all the points that reside in a bound
func (q *Quad) GetPointsIn(b orb.Bound) []PointLike {
	res := []PointLike{}
	var walk func(n *node)
	walk = func(n *node) {
		if n.sub != nil {
			for _, child := range n.sub {
				if child.bound.Intersects(b) {
					walk(child)
				}
			}
			return
		}
		for _, p := range n.points {
			if b.Contains(p.GetPoint()) {
				res = append(res, p)
			}
		}
	}
	walk(q.root)
	return res
}

// GetRectsWithPoint returns all the rects stored in the tree that contain a point
func (q *Quad) GetRectsWithPoint(p orb.Point, acceptor RectAcceptor) set.Set {
	res := set.NewThreadUnsafeSet()
	var walk func(n *node)
	walk = func(n *node) {
		for _, r := range n.rects {
			if r.GetBound().Contains(p) && (acceptor == nil || acceptor(r)) {
				res.Add(r)
			}
		}
		if n.sub == nil {
			return
		}
		for _, child := range n.sub {
			if child.bound.Contains(p) {
				walk(child)
			}
		}
	}
	walk(q.root)
	return res
}

// GetRectsIntersecting returns all the rects stored in the tree that overlap b, borders included
func (q *Quad) GetRectsIntersecting(b orb.Bound, acceptor RectAcceptor) set.Set {
	res := set.NewThreadUnsafeSet()
	var walk func(n *node)
	walk = func(n *node) {
		for _, r := range n.rects {
			if r.GetBound().Intersects(b) && (acceptor == nil || acceptor(r)) {
				res.Add(r)
			}
		}
		if n.sub == nil {
			return
		}
		for _, child := range n.sub {
			if child.bound.Intersects(b) {
				walk(child)
			}
		}
	}
	walk(q.root)
	return res
}
