package stream

// A Renderer draws the frame for a target timestamp. buf is a scratch buffer
// of width*height*3 bytes that is reused between calls; the returned Frame
// must own its own copy of the pixels. Render should not panic: a Pacer whose
// Renderer panics stops producing frames.
type Renderer interface {
	Render(timestampMs int64, buf []byte) *Frame
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(timestampMs int64, buf []byte) *Frame

// Render calls fn.
func (fn RendererFunc) Render(timestampMs int64, buf []byte) *Frame {
	return fn(timestampMs, buf)
}
