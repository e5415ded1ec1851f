package util

// GenerateLut builds an eased out-and-back cycle of the given length using an
// easing function such as ease.InOutQuad. Values rise from 0 to 1 and fall
// back, so indexing it modulo its length gives a seamless loop.
func GenerateLut(length int, easing func(float64) float64) []float64 {
	if length <= 0 {
		return nil
	}

	lut := make([]float64, length)
	peak := (length - 1) / 2
	if peak == 0 {
		return lut
	}

	for i := 0; i <= peak; i++ {
		value := easing(float64(i) / float64(peak))
		lut[i] = value
		lut[length-1-i] = value
	}
	return lut
}
