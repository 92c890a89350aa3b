package broadphase

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Axis indices into mgl64.Vec3.
const (
	AxisX = 0
	AxisY = 1
	AxisZ = 2
)

// Collider is one object's bounding box for the broad phase.
type Collider struct {
	Index    int
	Min, Max mgl64.Vec3
}

// Sorter sorts colliders by the low end of their interval on an axis.
//
// Ranges larger than grain*workers are partitioned and handed to a shared
// queue drained by workers goroutines; smaller ranges are sorted in place by
// whichever goroutine holds them. A Sorter has no state of its own and may
// be used from several goroutines on distinct lists.
type Sorter struct {
	workers   int
	threshold int
}

// NewSorter returns a Sorter. workers and grain below 1 are treated as 1.
func NewSorter(workers, grain int) *Sorter {
	if workers < 1 {
		workers = 1
	}
	if grain < 1 {
		grain = 1
	}
	return &Sorter{workers: workers, threshold: grain * workers}
}

// Sort orders list by Min[axis].
func (s *Sorter) Sort(list []Collider, axis int) {
	s.Quicksort(list, 0, len(list)-1, axis)
}

// Quicksort orders list[left..right] (inclusive) by Min[axis].
func (s *Sorter) Quicksort(list []Collider, left, right, axis int) {
	if left >= right {
		return
	}
	if s.workers == 1 || right-left+1 <= s.threshold {
		quicksort(list, left, right, axis)
		return
	}

	q := newRangeQueue()
	q.Push(span{lo: left, hi: right})

	var wg sync.WaitGroup
	wg.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go s.sortWorker(q, list, axis, &wg)
	}
	wg.Wait()
}

func (s *Sorter) sortWorker(q *rangeQueue, list []Collider, axis int, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		if sp, ok := q.TryPop(); ok {
			s.split(q, list, sp, axis)
			q.Done()
			continue
		}
		if q.Closed() {
			return
		}
		<-q.Wait()
	}
}

// split partitions one queued range and routes both halves.
func (s *Sorter) split(q *rangeQueue, list []Collider, sp span, axis int) {
	if sp.hi-sp.lo+1 <= s.threshold {
		quicksort(list, sp.lo, sp.hi, axis)
		return
	}
	i, j := partition(list, sp.lo, sp.hi, axis)
	for _, half := range [2]span{{sp.lo, j}, {i, sp.hi}} {
		switch {
		case half.lo >= half.hi:
		case half.hi-half.lo+1 <= s.threshold:
			quicksort(list, half.lo, half.hi, axis)
		default:
			q.Push(half)
		}
	}
}

// partition is a Hoare partition around the middle element. On return
// list[lo..j] <= pivot <= list[i..hi].
func partition(list []Collider, lo, hi, axis int) (i, j int) {
	pivot := list[lo+(hi-lo)/2].Min[axis]
	i, j = lo, hi
	for i <= j {
		for list[i].Min[axis] < pivot {
			i++
		}
		for list[j].Min[axis] > pivot {
			j--
		}
		if i <= j {
			list[i], list[j] = list[j], list[i]
			i++
			j--
		}
	}
	return i, j
}

func quicksort(list []Collider, lo, hi, axis int) {
	for lo < hi {
		i, j := partition(list, lo, hi, axis)
		// recurse into the smaller side to bound stack depth
		if j-lo < hi-i {
			quicksort(list, lo, j, axis)
			lo = i
		} else {
			quicksort(list, i, hi, axis)
			hi = j
		}
	}
}
