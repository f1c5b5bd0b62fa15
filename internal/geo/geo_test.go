package geo

import "testing"

func TestHaversineDistanceZero(t *testing.T) {
	d := HaversineDistance(47.6062, -122.3321, 47.6062, -122.3321)
	if d.NM > 1e-6 || d.Ft > 1e-3 {
		t.Fatalf("expected ~0 distance, got %+v", d)
	}
}

func TestHaversineDistanceKnown(t *testing.T) {
	// SEA -> PDX roughly 112nm (about 129 statute miles)
	d := HaversineDistance(47.4502, -122.3088, 45.5898, -122.5951)
	if d.NM < 103 || d.NM > 121 {
		t.Fatalf("expected ~112nm, got %f", d.NM)
	}
}

func TestNormalizeAngle(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		359:  359,
		360:  0,
		361:  1,
		-1:   359,
		-361: 359,
	}
	for in, want := range cases {
		if got := NormalizeAngle(in); got != want {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestAngleError(t *testing.T) {
	cases := []struct{ a, b, want float64 }{
		{330, 340, -10},
		{330, 160, 170},
		{10, 350, 20},
		{0, 0, 0},
	}
	for _, c := range cases {
		if got := AngleError(c.a, c.b); got != c.want {
			t.Errorf("AngleError(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestBearingNormalized(t *testing.T) {
	b := Bearing(47.0, -122.0, 46.0, -122.0)
	if b < 0 || b >= 360 {
		t.Fatalf("bearing out of [0,360): %v", b)
	}
	// Due south should be ~180
	if b < 170 || b > 190 {
		t.Errorf("expected bearing near 180 for due-south target, got %v", b)
	}
}

func TestProjectPointRoundTrip(t *testing.T) {
	lat, lon := ProjectPoint(47.0, -122.0, 90, 10)
	back := Bearing(lat, lon, 47.0, -122.0)
	// Reverse bearing should point roughly west (~270)
	if back < 260 || back > 280 {
		t.Errorf("expected reverse bearing near 270, got %v", back)
	}
}
