package main

import (
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/playground/internal/kata"
)

// cmdKata runs one of the bundled katas
func cmdKata(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: playground kata fizzbuzz <n>")
	}

	switch args[0] {
	case "fizzbuzz":
		n := 15
		if len(args) > 1 {
			var err error
			if n, err = strconv.Atoi(args[1]); err != nil || n < 1 {
				return fmt.Errorf("invalid count %q: must be a positive number", args[1])
			}
		}
		fmt.Println(kata.FizzBuzzTo(n))
		return nil
	default:
		return fmt.Errorf("unknown kata: %s (valid: fizzbuzz)", args[0])
	}
}
