package kata

import "testing"

func TestFizzBuzz(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "1"},
		{3, "Fizz"},
		{5, "Buzz"},
		{7, "7"},
		{9, "Fizz"},
		{10, "Buzz"},
		{15, "FizzBuzz"},
		{30, "FizzBuzz"},
	}

	for _, tt := range tests {
		if got := FizzBuzz(tt.n); got != tt.want {
			t.Errorf("FizzBuzz(%d) = %q; want %q", tt.n, got, tt.want)
		}
	}
}

func TestFizzBuzzTo(t *testing.T) {
	want := "1\n2\nFizz\n4\nBuzz"
	if got := FizzBuzzTo(5); got != want {
		t.Errorf("FizzBuzzTo(5) = %q; want %q", got, want)
	}
	if got := FizzBuzzTo(0); got != "" {
		t.Errorf("FizzBuzzTo(0) = %q; want empty", got)
	}
}
