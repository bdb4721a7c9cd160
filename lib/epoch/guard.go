package epoch

import (
	"fmt"
	"runtime"
)

// threadSlot pins an operation family to the goroutine that first invoked it.
// The zero value is an empty slot; goroutine IDs start at 1, so 0 is free to
// mean "not yet pinned". All accesses happen under the coordinator's mutex.
type threadSlot struct {
	id uint64
}

// assertConsistent pins the slot to the calling goroutine on first use and
// panics if a later call arrives from a different goroutine. Must be called
// with the coordinator's mutex held.
func (s *threadSlot) assertConsistent(method, role string) {
	gid := goroutineID()
	if s.id == 0 {
		s.id = gid
		return
	}
	if s.id != gid {
		panic(fmt.Sprintf(
			"epoch: %s called from goroutine %d, but the %s is pinned to goroutine %d",
			method, gid, role, s.id))
	}
}

// goroutineID returns the current goroutine's ID by parsing the header of a
// runtime.Stack dump ("goroutine N [running]: ..."). There is no faster
// supported way to get at it, and this only runs inside the coordinator's
// short mutex-protected sections, never on the lock-free read path.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
