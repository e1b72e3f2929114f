package dice

// Between returns a uniformly distributed int in the closed range [lo, hi].
//
// Precondition: src is non-nil. When hi < lo the bounds are swapped.
func Between(src Source, lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + src.Intn(hi-lo+1)
}

// Uniform returns a float in [lo, hi] drawn from src.
//
// Postcondition: lo <= result <= hi.
func Uniform(src Source, lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	v := lo + src.Float64()*(hi-lo)
	if v > hi {
		return hi
	}
	return v
}

// Chance performs a single Bernoulli draw with success probability p.
// Values of p at or below 0 never succeed; values at or above 1 always do.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return src.Float64() < p
}

// Pick returns a uniformly random index into a collection of length n, or -1
// when n is zero.
func Pick(src Source, n int) int {
	if n <= 0 {
		return -1
	}
	return src.Intn(n)
}
