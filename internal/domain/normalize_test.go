package domain

import "testing"

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"  Cafe   X ", "Cafe X"},
		{"Straße", "Straße"},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTrimNormalizer(t *testing.T) {
	t.Parallel()

	in := Tags{
		" name ":   String("  Cafe  X "),
		"note":     String("   "),
		"  ":       String("orphan"),
		"capacity": Number(12),
	}
	got := TrimNormalizer.Normalize(in)
	want := Tags{"name": String("Cafe X"), "capacity": Number(12)}
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	addCategory := NormalizerFunc(func(t Tags) Tags {
		out := t.Clone()
		if _, ok := out["amenity"]; ok {
			out["category"] = String("poi")
		}
		return out
	})

	got := Chain(TrimNormalizer, addCategory).Normalize(Tags{" amenity": String("cafe ")})
	want := Tags{"amenity": String("cafe"), "category": String("poi")}
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	same := Tags{"a": String("b")}
	if !NopNormalizer.Normalize(same).Equal(same) {
		t.Fatal("NopNormalizer must not change tags")
	}
}

func TestCoordinates(t *testing.T) {
	t.Parallel()

	lat, lon, ok := Coordinates(Tags{"lat": Number(52.52), "lon": Number(13.405)})
	if !ok || lat != 52.52 || lon != 13.405 {
		t.Fatalf("got %v %v %v", lat, lon, ok)
	}

	lat, lon, ok = Coordinates(Tags{"lat": String("1.5"), "lng": String("2.5")})
	if !ok || lat != 1.5 || lon != 2.5 {
		t.Fatalf("lng alias: got %v %v %v", lat, lon, ok)
	}

	for _, tags := range []Tags{
		{"lat": Number(1)},
		{"lon": Number(1)},
		{"lat": String("x"), "lon": Number(1)},
		{"lat": Number(91), "lon": Number(1)},
	} {
		if _, _, ok := Coordinates(tags); ok {
			t.Errorf("Coordinates(%v) should fail", tags)
		}
	}
}
