// Package rules contains the pure calculation logic for puzzle feasibility.
// This package is PURE and must NOT import any infrastructure packages.
package rules

// IsSolvable rejects the two degenerate configurations of the classic
// two-jug puzzle: two even capacities with an odd target, and two equal
// capacities that differ from the target. It is a necessary condition only.
func IsSolvable(capA, capB, target int) bool {
	if capA%2 == 0 && capB%2 == 0 && target%2 != 0 {
		return false
	}
	if capA == capB && capA != target {
		return false
	}
	return true
}

// IsReachable reports whether some sequence of fills, dumps and transfers
// leaves exactly target units in one of the buckets: the reachable volumes
// are the multiples of gcd(capA, capB) up to the larger capacity.
func IsReachable(capA, capB, target int) bool {
	if target <= 0 || capA < 0 || capB < 0 {
		return false
	}
	g := GCD(capA, capB)
	if g == 0 {
		return false
	}
	return target%g == 0 && target <= max(capA, capB)
}

// GCD returns the greatest common divisor of two non-negative integers.
func GCD(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
