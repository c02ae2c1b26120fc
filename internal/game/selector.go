package game

import "fmt"

// SelectDistractors draws n distinct items from pool, skipping excludeID.
// Items sharing an id count once.
func SelectDistractors(rng RNG, pool []Item, excludeID int64, n int) ([]Item, error) {
	seen := make(map[int64]struct{}, len(pool))
	eligible := make([]Item, 0, len(pool))
	for _, it := range pool {
		if it.ID == excludeID {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		eligible = append(eligible, it)
	}

	if len(eligible) < n {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientDistractors, n, len(eligible))
	}

	// Partial Fisher-Yates: only the first n slots are needed.
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(eligible)-i)
		eligible[i], eligible[j] = eligible[j], eligible[i]
	}

	out := make([]Item, n)
	copy(out, eligible[:n])
	return out, nil
}

// ShuffleOptions returns correct and distractors in uniformly random order.
func ShuffleOptions(rng RNG, correct Item, distractors []Item) []Item {
	options := make([]Item, 0, len(distractors)+1)
	options = append(options, distractors...)
	options = append(options, correct)

	for i := len(options) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		options[i], options[j] = options[j], options[i]
	}
	return options
}
