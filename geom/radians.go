package geom

import "math"

// Radians converts degrees to radians.
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Angle2 returns the unsigned angle at b formed by the points a, b, c,
// in degrees within [0, 180].
func Angle2(a, b, c Vec2) float64 {
	u := a.Sub(b)
	v := c.Sub(b)
	if u.Length() == 0 || v.Length() == 0 {
		return 0
	}
	return Degrees(math.Atan2(math.Abs(u.Cross(v)), u.Dot(v)))
}

// WrapAngle reduces a to the half-open interval (-period/2, period/2].
func WrapAngle(a, period float64) float64 {
	a = math.Mod(a, period)
	if a > period/2 {
		a -= period
	} else if a <= -period/2 {
		a += period
	}
	return a
}
