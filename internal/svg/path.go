package svg

import (
	"fmt"
	"math"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
)

// curveSegments is the flattening resolution for beziers and elliptical
// arcs. Matches the resolution used for DXF arcs downstream.
const curveSegments = 32

// subPath is one M...Z run of a path element, flattened to straight
// segments.
type subPath struct {
	points []mgl64.Vec2
	closed bool
}

// pathScanner walks SVG path data ("d" attribute). The grammar is the one
// from the SVG 1.1 spec; numbers may be separated by whitespace or commas,
// and command letters repeat implicitly.
type pathScanner struct {
	data string
	i    int

	current  mgl64.Vec2
	start    mgl64.Vec2
	lastCtrl mgl64.Vec2 // reflection point for S/T
	lastCmd  byte

	sub  *subPath
	subs []subPath
}

// parsePathData flattens one "d" attribute into subpaths.
func parsePathData(data string) ([]subPath, error) {
	s := &pathScanner{data: data}
	if err := s.parse(); err != nil {
		return nil, err
	}
	s.flush()
	return s.subs, nil
}

func (s *pathScanner) parse() error {
	for {
		s.skipSeparators()
		if s.i >= len(s.data) {
			return nil
		}
		cmd := s.data[s.i]
		if !isCommand(cmd) {
			// Implicit repetition of the previous command; after an M
			// the implicit command is L.
			cmd = s.lastCmd
			switch cmd {
			case 'M':
				cmd = 'L'
			case 'm':
				cmd = 'l'
			case 0:
				return fmt.Errorf("path data must start with a moveto, got %q", s.data[s.i])
			}
		} else {
			s.i++
		}
		if err := s.applyCommand(cmd); err != nil {
			return err
		}
		s.lastCmd = cmd
	}
}

func (s *pathScanner) applyCommand(cmd byte) error {
	rel := cmd >= 'a' && cmd <= 'z'
	switch cmd {
	case 'M', 'm':
		p, err := s.point(rel)
		if err != nil {
			return err
		}
		s.flush()
		s.current = p
		s.start = p
		s.sub = &subPath{points: []mgl64.Vec2{p}}
	case 'L', 'l':
		p, err := s.point(rel)
		if err != nil {
			return err
		}
		s.lineTo(p)
	case 'H', 'h':
		x, err := s.number()
		if err != nil {
			return err
		}
		if rel {
			x += s.current.X()
		}
		s.lineTo(mgl64.Vec2{x, s.current.Y()})
	case 'V', 'v':
		y, err := s.number()
		if err != nil {
			return err
		}
		if rel {
			y += s.current.Y()
		}
		s.lineTo(mgl64.Vec2{s.current.X(), y})
	case 'C', 'c':
		c1, err := s.point(rel)
		if err != nil {
			return err
		}
		c2, err := s.point(rel)
		if err != nil {
			return err
		}
		end, err := s.point(rel)
		if err != nil {
			return err
		}
		s.cubicTo(c1, c2, end)
	case 'S', 's':
		c2, err := s.point(rel)
		if err != nil {
			return err
		}
		end, err := s.point(rel)
		if err != nil {
			return err
		}
		c1 := s.current
		if s.lastCmd == 'C' || s.lastCmd == 'c' || s.lastCmd == 'S' || s.lastCmd == 's' {
			c1 = reflect(s.current, s.lastCtrl)
		}
		s.cubicTo(c1, c2, end)
	case 'Q', 'q':
		c, err := s.point(rel)
		if err != nil {
			return err
		}
		end, err := s.point(rel)
		if err != nil {
			return err
		}
		s.quadTo(c, end)
	case 'T', 't':
		end, err := s.point(rel)
		if err != nil {
			return err
		}
		c := s.current
		if s.lastCmd == 'Q' || s.lastCmd == 'q' || s.lastCmd == 'T' || s.lastCmd == 't' {
			c = reflect(s.current, s.lastCtrl)
		}
		s.quadTo(c, end)
	case 'A', 'a':
		if err := s.arcTo(rel); err != nil {
			return err
		}
	case 'Z', 'z':
		if s.sub != nil {
			s.sub.closed = true
			s.subs = append(s.subs, *s.sub)
			s.sub = nil
		}
		s.current = s.start
	default:
		return fmt.Errorf("unsupported path command %q", string(cmd))
	}
	return nil
}

func (s *pathScanner) lineTo(p mgl64.Vec2) {
	s.ensureSub()
	s.sub.points = append(s.sub.points, p)
	s.current = p
}

// cubicTo flattens a cubic bezier into curveSegments chords.
func (s *pathScanner) cubicTo(c1, c2, end mgl64.Vec2) {
	p0 := s.current
	for i := 1; i <= curveSegments; i++ {
		t := float64(i) / curveSegments
		u := 1 - t
		p := p0.Mul(u * u * u).
			Add(c1.Mul(3 * u * u * t)).
			Add(c2.Mul(3 * u * t * t)).
			Add(end.Mul(t * t * t))
		s.lineTo(p)
	}
	s.lastCtrl = c2
	s.current = end
}

// quadTo flattens a quadratic bezier into curveSegments chords.
func (s *pathScanner) quadTo(c, end mgl64.Vec2) {
	p0 := s.current
	for i := 1; i <= curveSegments; i++ {
		t := float64(i) / curveSegments
		u := 1 - t
		p := p0.Mul(u * u).
			Add(c.Mul(2 * u * t)).
			Add(end.Mul(t * t))
		s.lineTo(p)
	}
	s.lastCtrl = c
	s.current = end
}

// arcTo flattens one elliptical arc using the endpoint-to-center
// conversion from SVG 1.1 appendix F.6.
func (s *pathScanner) arcTo(rel bool) error {
	rx, err := s.number()
	if err != nil {
		return err
	}
	ry, err := s.number()
	if err != nil {
		return err
	}
	rot, err := s.number()
	if err != nil {
		return err
	}
	largeArc, err := s.flagValue()
	if err != nil {
		return err
	}
	sweep, err := s.flagValue()
	if err != nil {
		return err
	}
	end, err := s.point(rel)
	if err != nil {
		return err
	}

	p0 := s.current
	if rx == 0 || ry == 0 || p0 == end {
		s.lineTo(end)
		return nil
	}
	rx, ry = math.Abs(rx), math.Abs(ry)

	phi := rot * math.Pi / 180
	cosPhi, sinPhi := math.Cos(phi), math.Sin(phi)

	dx := (p0.X() - end.X()) / 2
	dy := (p0.Y() - end.Y()) / 2
	x1p := cosPhi*dx + sinPhi*dy
	y1p := -sinPhi*dx + cosPhi*dy

	// Scale radii up if the endpoints cannot be spanned.
	lambda := x1p*x1p/(rx*rx) + y1p*y1p/(ry*ry)
	if lambda > 1 {
		scale := math.Sqrt(lambda)
		rx *= scale
		ry *= scale
	}

	num := rx*rx*ry*ry - rx*rx*y1p*y1p - ry*ry*x1p*x1p
	den := rx*rx*y1p*y1p + ry*ry*x1p*x1p
	radicand := math.Max(0, num/den)
	coef := math.Sqrt(radicand)
	if largeArc == sweep {
		coef = -coef
	}
	cxp := coef * rx * y1p / ry
	cyp := -coef * ry * x1p / rx

	cx := cosPhi*cxp - sinPhi*cyp + (p0.X()+end.X())/2
	cy := sinPhi*cxp + cosPhi*cyp + (p0.Y()+end.Y())/2

	theta1 := math.Atan2((y1p-cyp)/ry, (x1p-cxp)/rx)
	theta2 := math.Atan2((-y1p-cyp)/ry, (-x1p-cxp)/rx)
	delta := theta2 - theta1
	if !sweep && delta > 0 {
		delta -= 2 * math.Pi
	} else if sweep && delta < 0 {
		delta += 2 * math.Pi
	}

	for i := 1; i <= curveSegments; i++ {
		theta := theta1 + delta*float64(i)/curveSegments
		x := cx + rx*math.Cos(theta)*cosPhi - ry*math.Sin(theta)*sinPhi
		y := cy + rx*math.Cos(theta)*sinPhi + ry*math.Sin(theta)*cosPhi
		s.lineTo(mgl64.Vec2{x, y})
	}
	s.current = end
	return nil
}

func (s *pathScanner) ensureSub() {
	if s.sub == nil {
		s.sub = &subPath{points: []mgl64.Vec2{s.current}}
	}
}

func (s *pathScanner) flush() {
	if s.sub != nil && len(s.sub.points) > 1 {
		s.subs = append(s.subs, *s.sub)
	}
	s.sub = nil
}

func (s *pathScanner) point(rel bool) (mgl64.Vec2, error) {
	x, err := s.number()
	if err != nil {
		return mgl64.Vec2{}, err
	}
	y, err := s.number()
	if err != nil {
		return mgl64.Vec2{}, err
	}
	p := mgl64.Vec2{x, y}
	if rel {
		p = p.Add(s.current)
	}
	return p, nil
}

func (s *pathScanner) number() (float64, error) {
	s.skipSeparators()
	start := s.i
	if s.i < len(s.data) && (s.data[s.i] == '+' || s.data[s.i] == '-') {
		s.i++
	}
	digitsBefore := s.digits()
	dot := false
	if s.i < len(s.data) && s.data[s.i] == '.' {
		dot = true
		s.i++
	}
	digitsAfter := s.digits()
	if !digitsBefore && !(dot && digitsAfter) {
		return 0, fmt.Errorf("expected number at offset %d in path data", start)
	}
	if s.i < len(s.data) && (s.data[s.i] == 'e' || s.data[s.i] == 'E') {
		s.i++
		if s.i < len(s.data) && (s.data[s.i] == '+' || s.data[s.i] == '-') {
			s.i++
		}
		if !s.digits() {
			return 0, fmt.Errorf("expected exponent at offset %d in path data", start)
		}
	}
	return strconv.ParseFloat(s.data[start:s.i], 64)
}

// flagValue reads an arc flag, which is a bare 0 or 1 possibly without a
// separator before the next number.
func (s *pathScanner) flagValue() (bool, error) {
	s.skipSeparators()
	if s.i >= len(s.data) {
		return false, fmt.Errorf("expected arc flag at end of path data")
	}
	switch s.data[s.i] {
	case '0':
		s.i++
		return false, nil
	case '1':
		s.i++
		return true, nil
	}
	return false, fmt.Errorf("expected arc flag at offset %d", s.i)
}

func (s *pathScanner) digits() bool {
	start := s.i
	for s.i < len(s.data) && s.data[s.i] >= '0' && s.data[s.i] <= '9' {
		s.i++
	}
	return s.i > start
}

func (s *pathScanner) skipSeparators() {
	for s.i < len(s.data) {
		switch s.data[s.i] {
		case ' ', '\t', '\r', '\n', ',':
			s.i++
		default:
			return
		}
	}
}

func isCommand(c byte) bool {
	switch c {
	case 'M', 'm', 'L', 'l', 'H', 'h', 'V', 'v', 'C', 'c', 'S', 's',
		'Q', 'q', 'T', 't', 'A', 'a', 'Z', 'z':
		return true
	}
	return false
}

func reflect(about, p mgl64.Vec2) mgl64.Vec2 {
	return about.Mul(2).Sub(p)
}
