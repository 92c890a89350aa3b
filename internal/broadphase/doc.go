// Package broadphase prunes object pairs that cannot possibly touch.
//
// Each object is projected to an axis-aligned box (Project). Sorter sorts
// boxes by their low end along one axis with a parallel quicksort and
// Overlaps uses it to cut the set into runs that overlap on x, then y, then
// z. Only members of the same final run are compared.
//
// Parallel sort: a Quicksort call on a range larger than grain*workers
// starts workers goroutines that share one range queue. A goroutine pops a
// range, partitions it, sorts small halves in place and pushes large ones.
// The call returns once every queued range has been handled. Goroutines
// only ever write disjoint sub-ranges of the list.
package broadphase
