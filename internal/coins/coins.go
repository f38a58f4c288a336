// Package coins implements the machine's currency: the accepted coin set and
// greedy change-making over it.
//
// The greedy pass returns the fewest coins only for canonical coin systems
// such as Accepted. It is not a general optimal change solver.
package coins

// Accepted lists the coin values the machine takes and returns, largest first.
var Accepted = []int{100, 50, 20, 10, 5}

// Smallest is the lowest accepted coin; every balance is a multiple of it.
const Smallest = 5

// IsAccepted reports whether amount is a single accepted coin.
func IsAccepted(amount int) bool {
	for _, c := range Accepted {
		if c == amount {
			return true
		}
	}
	return false
}

// MakeChange breaks amount into coins from denominations, which must be
// sorted in descending order. Any remainder smaller than the last
// denomination is dropped; balances built from accepted coins never leave one.
func MakeChange(denominations []int, amount int) []int {
	change := make([]int, 0)
	remaining := amount
	for _, coin := range denominations {
		if coin <= 0 {
			continue
		}
		for remaining >= coin {
			remaining -= coin
			change = append(change, coin)
		}
	}
	return change
}

// Sum adds up a set of coins.
func Sum(coins []int) int {
	total := 0
	for _, c := range coins {
		total += c
	}
	return total
}
