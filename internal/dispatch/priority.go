package dispatch

import "fmt"

// Priority is the closed set of ordering ranks a Handler declares. New ranks
// require extending the rank table; arbitrary integers are rejected by New.
type Priority int

const (
	PriorityEarliest Priority = iota + 1
	PriorityEarly
	PriorityLate
	PriorityLatest
)

var priorityRanks = map[Priority]int{
	PriorityEarliest: 0,
	PriorityEarly:    1,
	PriorityLate:     2,
	PriorityLatest:   3,
}

var priorityNames = map[Priority]string{
	PriorityEarliest: "EARLIEST",
	PriorityEarly:    "EARLY",
	PriorityLate:     "LATE",
	PriorityLatest:   "LATEST",
}

// Valid reports whether p is one of the declared ranks.
func (p Priority) Valid() bool {
	_, ok := priorityRanks[p]
	return ok
}

// Rank returns the sort key for p. It panics for undeclared values; New
// validates every handler so dispatch never reaches the panic.
func (p Priority) Rank() int {
	r, ok := priorityRanks[p]
	if !ok {
		panic(fmt.Sprintf("dispatch: undeclared priority %d", int(p)))
	}
	return r
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}
