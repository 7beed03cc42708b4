package patient

// NextKey returns one more than the largest primaryKey in c, or 1 when c is
// empty. Callers must hold the write lock for the allocation to be unique.
func NextKey(c Collection) int {
	highest := 0
	for _, r := range c {
		if r.PrimaryKey > highest {
			highest = r.PrimaryKey
		}
	}
	return highest + 1
}
