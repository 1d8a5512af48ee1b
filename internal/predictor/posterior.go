package predictor

import "maps"

// Lookup returns post[id], or fallback when id is absent.
func Lookup(post Posterior, id int, fallback float64) float64 {
	if v, ok := post[id]; ok {
		return v
	}
	return fallback
}

// ArgMax returns the id with the highest score. Ties go to the smallest id so
// the result does not depend on map iteration order. ok is false for an empty
// posterior.
func ArgMax(post Posterior) (id int, ok bool) {
	bestV := 0.0
	for k, v := range post {
		if !ok || v > bestV || (v == bestV && k < id) {
			id, bestV, ok = k, v, true
		}
	}
	return id, ok
}

// Clone returns a copy of post that the caller may modify.
func Clone(post Posterior) Posterior {
	if post == nil {
		return Posterior{}
	}
	return maps.Clone(post)
}
