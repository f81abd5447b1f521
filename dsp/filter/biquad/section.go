package biquad

// Coefficients of one second-order section, normalized so a0 = 1:
//
//	H(z) = (B0 + B1 z^-1 + B2 z^-2) / (1 + A1 z^-1 + A2 z^-2)
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Scaled returns c with the feedforward coefficients multiplied by g, which
// scales the section's gain by g at every frequency.
func (c Coefficients) Scaled(g float64) Coefficients {
	c.B0 *= g
	c.B1 *= g
	c.B2 *= g
	return c
}

// Section runs one set of coefficients in transposed direct form II. The
// two state words carry the partial sums for the next one and two samples.
type Section struct {
	Coefficients

	z [2]float64
}

// NewSection returns a Section with zero state.
func NewSection(c Coefficients) *Section {
	return &Section{Coefficients: c}
}

// ProcessSample filters one sample.
func (s *Section) ProcessSample(x float64) float64 {
	y := s.B0*x + s.z[0]
	s.z[0] = s.z[1] + s.B1*x - s.A1*y
	s.z[1] = s.B2*x - s.A2*y
	return y
}

// ProcessBlock filters buf in place without allocating.
func (s *Section) ProcessBlock(buf []float64) {
	c, z0, z1 := s.Coefficients, s.z[0], s.z[1]
	for i, x := range buf {
		y := c.B0*x + z0
		z0 = z1 + c.B1*x - c.A1*y
		z1 = c.B2*x - c.A2*y
		buf[i] = y
	}
	s.z = [2]float64{z0, z1}
}

// Reset zeroes the state.
func (s *Section) Reset() { s.z = [2]float64{} }

// State returns the two state words.
func (s *Section) State() [2]float64 { return s.z }
