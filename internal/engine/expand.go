package engine

// ExpandPath stitches the cached per-segment shortest paths of a visiting
// sequence into one full node-by-node route, eliding the junction node
// duplicated between consecutive segments. The cache must have been built
// over a node set containing every element of seq; a missing pair returns
// ErrCacheMiss and means the cache and optimizer disagree on the set.
func ExpandPath(c *DistanceCache, seq []NodeID) ([]NodeID, error) {
	if len(seq) == 0 {
		return nil, nil
	}
	full := []NodeID{seq[0]}
	for i := 0; i < len(seq)-1; i++ {
		segment, err := c.Path(seq[i], seq[i+1])
		if err != nil {
			return nil, err
		}
		if segment == nil {
			return nil, ErrUnreachable
		}
		full = append(full, segment[1:]...)
	}
	return full, nil
}
