package state

type Status int

const (
	Uninitialized Status = iota
	Failed
	Loaded
	Deleted
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Failed:
		return "failed"
	case Loaded:
		return "loaded"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Slot is the cached result for one key. Exactly one of the statuses holds.
type Slot struct {
	status Status
	value  any
	err    error
	// seq orders writes to this slot, see Reducer
	seq uint64
}

func LoadedSlot(value any, seq uint64) Slot {
	return Slot{status: Loaded, value: value, seq: seq}
}

func FailedSlot(err error, seq uint64) Slot {
	return Slot{status: Failed, err: err, seq: seq}
}

func DeletedSlot(seq uint64) Slot {
	return Slot{status: Deleted, seq: seq}
}

func (s Slot) Status() Status {
	return s.status
}

func (s Slot) Value() (any, bool) {
	return s.value, s.status == Loaded
}

func (s Slot) Err() error {
	return s.err
}

func (s Slot) Seq() uint64 {
	return s.seq
}

// ValueAs returns the loaded value of the slot as a T
func ValueAs[T any](s Slot) (T, bool) {
	var empty T
	if s.status != Loaded {
		return empty, false
	}
	value, ok := s.value.(T)
	if !ok {
		return empty, false
	}
	return value, true
}
