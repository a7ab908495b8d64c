package engine

// frameClock resolves the effective time for each frame.
//
// The host hands the loop a wall-derived timestamp in milliseconds. The
// effective time is monotonic: a timestamp that regresses (timer wraparound,
// suspended tab, clock adjustment) is clamped to the previous effective time
// so downstream phase accumulators never run backwards.
type frameClock struct {
	frame  int64
	timeMS float64
	seen   bool
}

// resolve advances the clock to the next frame and returns the effective
// time for it.
func (c *frameClock) resolve(hostMS float64) (frame int64, timeMS float64) {
	c.frame++
	if !c.seen || hostMS > c.timeMS {
		c.timeMS = hostMS
		c.seen = true
	}
	return c.frame, c.timeMS
}

// current returns the last resolved frame number without advancing.
func (c *frameClock) current() int64 { return c.frame }
