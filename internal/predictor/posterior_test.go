package predictor

import (
	"math"
	"testing"
)

func TestArgMax(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		post Posterior
		want int
		ok   bool
	}{
		{"empty", Posterior{}, 0, false},
		{"single", Posterior{7: -3}, 7, true},
		{"max", Posterior{1: -2, 4: -0.5, 9: -1}, 4, true},
		{"tie-smallest-id", Posterior{8: -1, 3: -1, 5: -4}, 3, true},
		{"neg-inf-only", Posterior{6: math.Inf(-1)}, 6, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ArgMax(tc.post)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("ArgMax = %d, %v; want %d, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestLookupAndClone(t *testing.T) {
	t.Parallel()
	post := Posterior{2: -1.5}
	if got := Lookup(post, 2, 0); got != -1.5 {
		t.Fatalf("Lookup present = %f", got)
	}
	if got := Lookup(post, 3, -9); got != -9 {
		t.Fatalf("Lookup absent = %f", got)
	}
	cp := Clone(post)
	cp[2] = 0
	if post[2] != -1.5 {
		t.Fatal("Clone shares storage with the original")
	}
	if Clone(nil) == nil {
		t.Fatal("Clone(nil) should return an empty map")
	}
}
