package bridge

const RingBufferCapacity = 255

// RingBuffer keeps the last RingBufferCapacity values pushed into it.
type RingBuffer struct {
	values [RingBufferCapacity]uint32
	begin  int
	size   int
}

// Push appends v, evicting the oldest value when full.
func (r *RingBuffer) Push(v uint32) {
	end := (r.begin + r.size) % RingBufferCapacity
	r.values[end] = v
	if r.size < RingBufferCapacity {
		r.size++
		return
	}
	r.begin = (r.begin + 1) % RingBufferCapacity
}

func (r *RingBuffer) Len() int {
	return r.size
}

// Values returns the content from oldest to newest.
func (r *RingBuffer) Values() []uint32 {
	res := make([]uint32, r.size)
	for i := 0; i < r.size; i++ {
		res[i] = r.values[(r.begin+i)%RingBufferCapacity]
	}
	return res
}

// Last returns the newest value, false if empty.
func (r *RingBuffer) Last() (uint32, bool) {
	if r.size == 0 {
		return 0, false
	}
	return r.values[(r.begin+r.size-1)%RingBufferCapacity], true
}
