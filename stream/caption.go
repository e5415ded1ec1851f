package stream

import (
	"fmt"
	"image"

	"github.com/fogleman/ease"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/matt-g-everett/frametx/config"
	"github.com/matt-g-everett/frametx/util"
)

// indicatorCycleMs is the period of the motion indicator under the caption.
const indicatorCycleMs = 2000

// A CaptionRenderer paints the frame timestamp as text on a flat background,
// with an eased bar underneath that sweeps out and back every two seconds.
type CaptionRenderer struct {
	width      int
	height     int
	textHeight float64
	label      string
	intervalMs int64
	face       font.Face

	background [3]uint8
	// palette maps glyph coverage to the foreground blended over the background.
	palette   [256][3]uint8
	indicator []float64

	mask   *image.Alpha
	scaled *image.Alpha
	logger *logrus.Entry
}

// NewCaptionRenderer creates a renderer for the configured frame size and colours.
func NewCaptionRenderer(cfg config.Frame) (*CaptionRenderer, error) {
	bg, err := colorful.Hex(cfg.Background)
	if err != nil {
		return nil, fmt.Errorf("background colour: %w", err)
	}
	fg, err := colorful.Hex(cfg.Foreground)
	if err != nil {
		return nil, fmt.Errorf("foreground colour: %w", err)
	}

	c := &CaptionRenderer{
		width:      cfg.Width,
		height:     cfg.Height,
		textHeight: cfg.TextHeight,
		label:      cfg.Label,
		intervalMs: cfg.IntervalMs,
		face:       basicfont.Face7x13,
		logger:     config.Logger("renderer"),
	}

	r, g, b := bg.Clamped().RGB255()
	c.background = [3]uint8{r, g, b}
	for i := range c.palette {
		r, g, b := bg.BlendLab(fg, float64(i)/255).Clamped().RGB255()
		c.palette[i] = [3]uint8{r, g, b}
	}

	steps := 3
	if cfg.IntervalMs > 0 && indicatorCycleMs/cfg.IntervalMs > int64(steps) {
		steps = int(indicatorCycleMs / cfg.IntervalMs)
	}
	c.indicator = util.GenerateLut(steps, ease.InOutQuad)

	return c, nil
}

// Render implements Renderer. It never fails: if the caption cannot be laid
// out the frame is sent as plain background.
func (c *CaptionRenderer) Render(timestampMs int64, buf []byte) *Frame {
	if len(buf) != c.width*c.height*3 {
		buf = make([]byte, c.width*c.height*3)
	}

	c.fillBackground(buf)
	if err := c.paint(timestampMs, buf); err != nil {
		c.logger.WithError(err).WithField("timestamp", timestampMs).Warn("Caption failed, sending blank frame")
		c.fillBackground(buf)
	}

	return NewFrame(timestampMs, c.width, c.height, buf)
}

func (c *CaptionRenderer) paint(timestampMs int64, buf []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("paint: %v", r)
		}
	}()

	bottom := c.drawCaption(fmt.Sprintf("%s: %d", c.label, timestampMs), buf)
	c.drawIndicator(timestampMs, bottom, buf)
	return nil
}

func (c *CaptionRenderer) fillBackground(buf []byte) {
	if len(buf) < 3 {
		return
	}
	copy(buf, c.background[:])
	for filled := 3; filled < len(buf); filled *= 2 {
		copy(buf[filled:], buf[:filled])
	}
}

// drawCaption rasterises text at the face's native size and scales it up to
// the configured text height. It returns the row just below the text.
func (c *CaptionRenderer) drawCaption(text string, buf []byte) int {
	metrics := c.face.Metrics()
	glyphHeight := metrics.Height.Ceil()
	d := &font.Drawer{Face: c.face}
	advance := d.MeasureString(text).Ceil()
	if advance <= 0 || glyphHeight <= 0 {
		return 0
	}

	bounds := image.Rect(0, 0, advance, glyphHeight)
	if c.mask == nil || c.mask.Bounds() != bounds {
		c.mask = image.NewAlpha(bounds)
	} else {
		clear(c.mask.Pix)
	}
	d.Dst = c.mask
	d.Src = image.Opaque
	d.Dot = fixed.P(0, metrics.Ascent.Ceil())
	d.DrawString(text)

	scale := c.textHeight / float64(glyphHeight)
	if limit := float64(4*c.height) / float64(glyphHeight); scale > limit {
		scale = limit
	}
	target := image.Rect(0, 0, int(float64(advance)*scale+0.5), int(float64(glyphHeight)*scale+0.5))
	visible := target.Intersect(image.Rect(0, 0, c.width, c.height))
	if visible.Empty() {
		return target.Max.Y
	}

	if c.scaled == nil || c.scaled.Bounds() != visible {
		c.scaled = image.NewAlpha(visible)
	} else {
		clear(c.scaled.Pix)
	}
	draw.NearestNeighbor.Scale(c.scaled, target, c.mask, bounds, draw.Src, nil)

	for y := visible.Min.Y; y < visible.Max.Y; y++ {
		row := c.scaled.Pix[(y-visible.Min.Y)*c.scaled.Stride:]
		for x := visible.Min.X; x < visible.Max.X; x++ {
			a := row[x-visible.Min.X]
			if a == 0 {
				continue
			}
			copy(buf[(y*c.width+x)*3:], c.palette[a][:])
		}
	}

	return target.Max.Y
}

func (c *CaptionRenderer) drawIndicator(timestampMs int64, top int, buf []byte) {
	if len(c.indicator) == 0 || c.intervalMs <= 0 {
		return
	}

	thickness := int(c.textHeight / 8)
	if thickness < 1 {
		thickness = 1
	}
	top += thickness

	step := (timestampMs / c.intervalMs) % int64(len(c.indicator))
	if step < 0 {
		step += int64(len(c.indicator))
	}
	length := int(c.indicator[step] * float64(c.width))

	bar := image.Rect(0, top, length, top+thickness).Intersect(image.Rect(0, 0, c.width, c.height))
	fg := c.palette[255]
	for y := bar.Min.Y; y < bar.Max.Y; y++ {
		for x := bar.Min.X; x < bar.Max.X; x++ {
			copy(buf[(y*c.width+x)*3:], fg[:])
		}
	}
}
