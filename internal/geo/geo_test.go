package geo

import (
	"math"
	"testing"
)

func TestDistanceKnownPairs(t *testing.T) {
	seoul := Point{Latitude: 37.5665, Longitude: 126.9780}
	busan := Point{Latitude: 35.1796, Longitude: 129.0756}

	if d := Distance(seoul, seoul); d != 0 {
		t.Fatalf("expected zero distance, got %f", d)
	}
	d := Distance(seoul, busan)
	if math.Abs(d-325000) > 5000 {
		t.Fatalf("unexpected seoul-busan distance %f", d)
	}
	if back := Distance(busan, seoul); math.Abs(back-d) > 1e-6 {
		t.Fatalf("distance must be symmetric: %f vs %f", d, back)
	}
}

func TestWithinRadius(t *testing.T) {
	center := Point{Latitude: 37.5, Longitude: 127.0}
	cases := []struct {
		name   string
		point  Point
		radius float64
		want   bool
	}{
		{name: "center", point: center, radius: 0, want: true},
		{name: "inside", point: Point{Latitude: 37.5005, Longitude: 127.0}, radius: 100, want: true},
		{name: "outside", point: Point{Latitude: 37.51, Longitude: 127.0}, radius: 100, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := WithinRadius(tc.point, center, tc.radius)
			if got != tc.want {
				t.Fatalf("WithinRadius()=%v want %v", got, tc.want)
			}
		})
	}
}

func TestWithinRadiusBoundaryInclusive(t *testing.T) {
	center := Point{Latitude: 37.5, Longitude: 127.0}
	point := Point{Latitude: 37.501, Longitude: 127.0}
	d := Distance(point, center)
	ok, rounded := WithinRadius(point, center, d)
	if !ok {
		t.Fatal("point exactly on the boundary must be inside")
	}
	if rounded != int(math.Round(d)) {
		t.Fatalf("unexpected rounded distance %d", rounded)
	}
}

func TestWithinRadiusAroundVenueEdge(t *testing.T) {
	venue := Point{Latitude: 37.5665, Longitude: 126.9780}
	door := Point{Latitude: 37.5674, Longitude: 126.9780}
	d := Distance(door, venue)
	if math.Abs(d-100) > 1 {
		t.Fatalf("expected roughly 100m, got %f", d)
	}
	if ok, rounded := WithinRadius(door, venue, d); !ok || rounded != 100 {
		t.Fatalf("WithinRadius at exact distance = %v, %d", ok, rounded)
	}
	if ok, _ := WithinRadius(door, venue, d-1); ok {
		t.Fatal("point one meter beyond the radius must be outside")
	}
}

func TestPointValid(t *testing.T) {
	if (Point{Latitude: 91, Longitude: 0}).Valid() {
		t.Fatal("latitude above 90 must be invalid")
	}
	if !(Point{Latitude: -33.8, Longitude: 151.2}).Valid() {
		t.Fatal("expected valid point")
	}
}
