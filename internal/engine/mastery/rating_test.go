package mastery

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRatingString(t *testing.T) {
	tests := []struct {
		r    Rating
		want string
	}{
		{Again, "again"},
		{Hard, "hard"},
		{Good, "good"},
		{Easy, "easy"},
		{Rating(0), "Rating(0)"},
		{Rating(9), "Rating(9)"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", int(tt.r), got, tt.want)
		}
	}
}

func TestRatingJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Good)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"good"` {
		t.Fatalf("marshal = %s, want %q", raw, `"good"`)
	}
	var r Rating
	if err := json.Unmarshal(raw, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r != Good {
		t.Errorf("round trip = %v, want %v", r, Good)
	}
}

func TestRatingUnmarshalInvalid(t *testing.T) {
	var r Rating
	err := r.UnmarshalText([]byte("perfect"))
	if !errors.Is(err, ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating, got %v", err)
	}
}

func TestRatingMarshalInvalid(t *testing.T) {
	_, err := Rating(42).MarshalText()
	if !errors.Is(err, ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating, got %v", err)
	}
}
