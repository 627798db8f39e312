package clock

import "testing"

func TestSince(t *testing.T) {
	tests := []struct {
		name string
		now  Millis
		then Millis
		want int32
	}{
		{"zero", 1000, 1000, 0},
		{"forward", 5000, 1000, 4000},
		{"backward", 1000, 5000, -4000},
		{"wrap", 500, 0xFFFFFE0C, 1000},
		{"wrap backward", 0xFFFFFE0C, 500, -1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Since(tt.now, tt.then); got != tt.want {
				t.Errorf("Since(%d, %d) = %d, want %d", tt.now, tt.then, got, tt.want)
			}
		})
	}
}

func TestAfter(t *testing.T) {
	if !After(5000, 1000, 4000) {
		t.Error("After should be true at exactly the interval")
	}
	if After(4999, 1000, 4000) {
		t.Error("After should be false one ms short")
	}
	// Across wrap: then shortly before wrap, now shortly after.
	if !After(3000, 0xFFFFFC18, 4000) {
		t.Error("After should handle wrap")
	}
}
