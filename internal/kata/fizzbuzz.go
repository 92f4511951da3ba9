// Package kata holds small practice exercises that ship with the playground.
package kata

import (
	"strconv"
	"strings"
)

// FizzBuzz returns "Fizz" for multiples of 3, "Buzz" for multiples of 5,
// "FizzBuzz" for multiples of both, and the number otherwise.
func FizzBuzz(n int) string {
	switch {
	case n%15 == 0:
		return "FizzBuzz"
	case n%3 == 0:
		return "Fizz"
	case n%5 == 0:
		return "Buzz"
	default:
		return strconv.Itoa(n)
	}
}

// FizzBuzzTo returns FizzBuzz for 1..n, one per line
func FizzBuzzTo(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString(FizzBuzz(i))
		if i < n {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
