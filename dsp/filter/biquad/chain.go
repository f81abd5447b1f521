package biquad

// Chain is an ordered cascade of biquad sections processed in series.
type Chain struct {
	sections []Section
}

// NewChain creates a cascade with one Section per coefficient set.
func NewChain(coeffs []Coefficients) *Chain {
	c := &Chain{sections: make([]Section, len(coeffs))}
	for i := range coeffs {
		c.sections[i].Coefficients = coeffs[i]
	}

	return c
}

// ProcessSample cascades x through all sections in order.
func (c *Chain) ProcessSample(x float64) float64 {
	for i := range c.sections {
		x = c.sections[i].ProcessSample(x)
	}

	return x
}

// ProcessBlock filters buf in place through the full cascade.
func (c *Chain) ProcessBlock(buf []float64) {
	for i := range c.sections {
		c.sections[i].ProcessBlock(buf)
	}
}

// Reset clears all section states.
func (c *Chain) Reset() {
	for i := range c.sections {
		c.sections[i].Reset()
	}
}

// NumSections returns the number of sections.
func (c *Chain) NumSections() int { return len(c.sections) }

// Interleaved filters interleaved multichannel audio with an independent
// chain per channel, so state carries across successive blocks.
type Interleaved struct {
	chains []*Chain
}

// NewInterleaved builds one chain from coeffs for each of channels.
func NewInterleaved(coeffs []Coefficients, channels int) *Interleaved {
	f := &Interleaved{chains: make([]*Chain, channels)}
	for i := range f.chains {
		f.chains[i] = NewChain(coeffs)
	}

	return f
}

// Channels returns the channel count.
func (f *Interleaved) Channels() int { return len(f.chains) }

// ProcessInterleaved filters buf in place. len(buf) must be a multiple of
// the channel count; trailing partial frames are left untouched.
func (f *Interleaved) ProcessInterleaved(buf []float64) {
	n := len(f.chains)
	if n == 0 {
		return
	}
	frames := len(buf) / n
	for i := 0; i < frames; i++ {
		for ch, c := range f.chains {
			buf[i*n+ch] = c.ProcessSample(buf[i*n+ch])
		}
	}
}

// Reset clears every channel's state.
func (f *Interleaved) Reset() {
	for _, c := range f.chains {
		c.Reset()
	}
}
