package cell

// Recipe describes the static structure of a network. The engine consults
// it only during construction to size and build its handle tables; it must
// be treated as read-only thereafter.
type Recipe interface {
	NumCells() int
	NumProbes(gid int) int
	NumSources(gid int) int
	NumTargets(gid int) int
}
