package interval

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Index is an interval tree over the intervals of a single chromosome.  It is
// a left-leaning red-black tree keyed by (start, stop), where each node is
// augmented with the largest closed high endpoint in its subtree; this lets
// Overlaps skip every subtree that ends before the query begins.
//
// All intervals with an identical key share one node, and the payloads
// attached to that key are kept in insertion order.  Payloads are never
// deduplicated.
//
// An Index is not safe for concurrent mutation, but any number of goroutines
// may call Contains, Get and Overlaps concurrently once building is done.
type Index struct {
	chrom       string
	root        *node
	nKeys       int
	nPayloads   int
	initialized bool
}

// Entry is a single (interval, payload) pair passed to Build.
type Entry struct {
	Interval Interval
	Payload  interface{}
}

type node struct {
	// low and high form the closed key [start, stop-1].
	low, high   PosType
	payloads    []interface{}
	maxHigh     PosType
	left, right *node
	red         bool
}

// Build constructs an Index from entries.  All entries must be valid and on
// the same chromosome; if any is not, Build fails without returning an index.
// Entries sharing an interval have their payloads merged in entry order.
func Build(entries []Entry) (*Index, error) {
	if len(entries) == 0 {
		return &Index{}, nil
	}
	chrom := entries[0].Interval.chrom
	for i, e := range entries {
		if err := validate(e.Interval); err != nil {
			return nil, errors.E(err, fmt.Sprintf("interval.Build: entry %d", i))
		}
		if e.Interval.chrom != chrom {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("interval.Build: entry %d is on %s, expected %s", i, e.Interval.chrom, chrom))
		}
	}
	idx := &Index{chrom: chrom, initialized: true}
	for _, e := range entries {
		idx.insert(e.Interval, e.Payload)
	}
	return idx, nil
}

// validate rejects intervals which could not have come from New, e.g. zero
// values.
func validate(iv Interval) error {
	if iv.start < 0 || iv.stop <= iv.start {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid interval %s:%d-%d", iv.chrom, iv.start, iv.stop))
	}
	return nil
}

// Chrom returns the chromosome of the indexed intervals.  It is empty for an
// empty index.
func (x *Index) Chrom() string { return x.chrom }

// Len returns the number of distinct interval keys.
func (x *Index) Len() int { return x.nKeys }

// NumPayloads returns the total number of payloads over all keys.
func (x *Index) NumPayloads() int { return x.nPayloads }

// Insert adds a single (interval, payload) pair.  Any OverlapIterator created
// before the call must not be used afterwards.
func (x *Index) Insert(iv Interval, payload interface{}) error {
	if err := validate(iv); err != nil {
		return errors.E(err, "interval.Insert")
	}
	if !x.initialized {
		x.chrom = iv.chrom
		x.initialized = true
	} else if iv.chrom != x.chrom {
		return errors.E(errors.Invalid, fmt.Sprintf("interval.Insert: %s interval added to %s index", iv.chrom, x.chrom))
	}
	x.insert(iv, payload)
	return nil
}

func (x *Index) insert(iv Interval, payload interface{}) {
	low, high := iv.closed()
	var added bool
	x.root, added = x.root.insert(low, high, payload)
	x.root.red = false
	if added {
		x.nKeys++
	}
	x.nPayloads++
}

func compareKey(low, high PosType, n *node) int {
	switch {
	case low < n.low:
		return -1
	case low > n.low:
		return 1
	case high < n.high:
		return -1
	case high > n.high:
		return 1
	}
	return 0
}

func (n *node) insert(low, high PosType, payload interface{}) (*node, bool) {
	if n == nil {
		return &node{
			low:      low,
			high:     high,
			payloads: []interface{}{payload},
			maxHigh:  high,
			red:      true,
		}, true
	}
	var added bool
	switch c := compareKey(low, high, n); {
	case c == 0:
		n.payloads = append(n.payloads, payload)
		return n, false
	case c < 0:
		n.left, added = n.left.insert(low, high, payload)
	default:
		n.right, added = n.right.insert(low, high, payload)
	}
	if n.right.isRed() && !n.left.isRed() {
		n = n.rotateLeft()
	}
	if n.left.isRed() && n.left.left.isRed() {
		n = n.rotateRight()
	}
	if n.left.isRed() && n.right.isRed() {
		n.flip()
	}
	n.adjust()
	return n, added
}

func (n *node) isRed() bool { return n != nil && n.red }

// adjust recomputes maxHigh from n's own key and its children.
func (n *node) adjust() {
	n.maxHigh = n.high
	if n.left != nil && n.left.maxHigh > n.maxHigh {
		n.maxHigh = n.left.maxHigh
	}
	if n.right != nil && n.right.maxHigh > n.maxHigh {
		n.maxHigh = n.right.maxHigh
	}
}

func (n *node) rotateLeft() *node {
	r := n.right
	n.right = r.left
	r.left = n
	r.red = n.red
	n.red = true
	n.adjust()
	r.adjust()
	return r
}

func (n *node) rotateRight() *node {
	l := n.left
	n.left = l.right
	l.right = n
	l.red = n.red
	n.red = true
	n.adjust()
	l.adjust()
	return l
}

func (n *node) flip() {
	n.red = !n.red
	n.left.red = !n.left.red
	n.right.red = !n.right.red
}

func (x *Index) find(iv Interval) *node {
	if !x.initialized || iv.chrom != x.chrom || iv.stop <= iv.start {
		return nil
	}
	low, high := iv.closed()
	n := x.root
	for n != nil {
		switch c := compareKey(low, high, n); {
		case c == 0:
			return n
		case c < 0:
			n = n.left
		default:
			n = n.right
		}
	}
	return nil
}

// Contains returns whether iv is present as an exact key.
func (x *Index) Contains(iv Interval) bool {
	return x.find(iv) != nil
}

// Get returns the payloads attached to the exact key iv, in insertion order,
// or nil if iv is absent.  The caller must not modify the returned slice.
func (x *Index) Get(iv Interval) []interface{} {
	if n := x.find(iv); n != nil {
		return n.payloads
	}
	return nil
}

// OverlapIterator is a single-pass iterator over the keys of an Index which
// overlap a query interval, in increasing (start, stop) order.  Typical usage:
//   it := idx.Overlaps(q)
//   for it.Scan() {
//     for _, p := range it.Payloads() {
//       ...
//     }
//   }
type OverlapIterator struct {
	chrom     string
	low, high PosType
	stack     []*node
	cur       *node
	n         *node
}

// Overlaps returns an iterator over every key overlapping q.  In closed
// coordinates, key [a, b] overlaps query [c, d] iff a <= d and c <= b; this is
// the same as half-open overlap of [a, b+1) and [c, d+1).  Queries on a
// different chromosome yield nothing.
func (x *Index) Overlaps(q Interval) *OverlapIterator {
	it := &OverlapIterator{chrom: x.chrom}
	if !x.initialized || q.chrom != x.chrom || q.stop <= q.start {
		return it
	}
	it.low, it.high = q.closed()
	it.cur = x.root
	return it
}

// Scan advances to the next overlapping key.  It returns false once there are
// none left.
func (it *OverlapIterator) Scan() bool {
	for {
		// Descend leftwards, skipping subtrees which end before the query.
		for it.cur != nil && it.cur.maxHigh >= it.low {
			it.stack = append(it.stack, it.cur)
			it.cur = it.cur.left
		}
		if len(it.stack) == 0 {
			it.n = nil
			return false
		}
		n := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]
		if n.low > it.high {
			// Every remaining key starts at or after n.low.
			it.stack = it.stack[:0]
			it.cur = nil
			it.n = nil
			return false
		}
		it.cur = n.right
		if n.high >= it.low {
			it.n = n
			return true
		}
	}
}

// Interval returns the key at the current position.
//
// REQUIRES: the last call to Scan returned true.
func (it *OverlapIterator) Interval() Interval {
	return Interval{chrom: it.chrom, start: it.n.low, stop: it.n.high + 1}
}

// Payloads returns the payloads attached to the current key.  The caller must
// not modify the returned slice.
//
// REQUIRES: the last call to Scan returned true.
func (it *OverlapIterator) Payloads() []interface{} {
	return it.n.payloads
}
