package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/codeddarkness/controller-new/internal/servo"
	"github.com/codeddarkness/controller-new/internal/storage"
)

const (
	imageWidth  = 1200
	imageHeight = 800

	// Border sizes in pixels
	topBorder    = 40
	leftBorder   = 80
	bottomBorder = 90
	rightBorder  = 40

	// Vertical gap between the angle panel and the accelerometer panel
	panelGap = 60
)

var (
	backgroundColor = color.RGBA{R: 0x10, G: 0x10, B: 0x18, A: 0xff}
	gridColor       = color.RGBA{R: 0x30, G: 0x30, B: 0x40, A: 0xff}

	channelColors = [servo.NumChannels]color.RGBA{
		{R: 0xff, G: 0x55, B: 0x55, A: 0xff},
		{R: 0x55, G: 0xff, B: 0x55, A: 0xff},
		{R: 0x55, G: 0x99, B: 0xff, A: 0xff},
		{R: 0xff, G: 0xcc, B: 0x33, A: 0xff},
	}

	accelColors = [3]color.RGBA{
		{R: 0xff, G: 0x88, B: 0x88, A: 0xff},
		{R: 0x88, G: 0xff, B: 0x88, A: 0xff},
		{R: 0x88, G: 0xbb, B: 0xff, A: 0xff},
	}
)

// ChartData accumulates one session's snapshots into plottable series.
type ChartData struct {
	Times  []time.Time
	Angles [servo.NumChannels][]int
	Accel  [3][]float64

	TimestampStart time.Time
	TimestampEnd   time.Time

	AccelMin float64
	AccelMax float64
}

func NewChartData() *ChartData {
	return &ChartData{
		AccelMin: math.Inf(1),
		AccelMax: math.Inf(-1),
	}
}

// Update appends one snapshot to the series.
func (d *ChartData) Update(snap *storage.Snapshot) {
	if len(d.Times) == 0 || snap.Timestamp.Before(d.TimestampStart) {
		d.TimestampStart = snap.Timestamp
	}
	if snap.Timestamp.After(d.TimestampEnd) {
		d.TimestampEnd = snap.Timestamp
	}

	d.Times = append(d.Times, snap.Timestamp)
	for ch := 0; ch < servo.NumChannels; ch++ {
		d.Angles[ch] = append(d.Angles[ch], snap.Servos.Positions[ch])
	}

	accel := [3]float64{snap.Reading.Accel.X, snap.Reading.Accel.Y, snap.Reading.Accel.Z}
	for i, v := range accel {
		d.Accel[i] = append(d.Accel[i], v)
		d.AccelMin = math.Min(d.AccelMin, v)
		d.AccelMax = math.Max(d.AccelMax, v)
	}
}

func (d *ChartData) Len() int { return len(d.Times) }

// Duration is the time span covered by the series.
func (d *ChartData) Duration() time.Duration {
	return d.TimestampEnd.Sub(d.TimestampStart)
}

// accelBounds pads the observed range so flat lines do not sit on a panel
// edge.
func (d *ChartData) accelBounds() (low, high float64) {
	low, high = d.AccelMin, d.AccelMax
	if span := high - low; span < 1 {
		mid := (high + low) / 2
		low, high = mid-0.5, mid+0.5
	}
	pad := (high - low) * 0.1
	return low - pad, high + pad
}

// Renderer draws the angle and accelerometer panels onto one image.
type Renderer struct {
	annotator *Annotator
}

func NewRenderer() (*Renderer, error) {
	annotator, err := NewAnnotator()
	if err != nil {
		return nil, err
	}
	return &Renderer{annotator: annotator}, nil
}

// Render produces the final chart for one session.
func (r *Renderer) Render(data *ChartData, session storage.Session) (*image.RGBA, error) {
	if data.Len() == 0 {
		return nil, fmt.Errorf("session %d has no data to plot", session.ID)
	}

	img := image.NewRGBA(image.Rect(0, 0, imageWidth, imageHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	anglePanel, accelPanel := panels()

	drawGrid(img, anglePanel)
	drawGrid(img, accelPanel)

	for ch := 0; ch < servo.NumChannels; ch++ {
		drawSeries(img, anglePanel, data, intSeries(data.Angles[ch]), float64(servo.MinAngle), float64(servo.MaxAngle), channelColors[ch])
	}

	low, high := data.accelBounds()
	for i := 0; i < 3; i++ {
		drawSeries(img, accelPanel, data, data.Accel[i], low, high, accelColors[i])
	}

	if err := r.annotator.Annotate(img, data, session, anglePanel, accelPanel); err != nil {
		return nil, fmt.Errorf("annotating chart: %w", err)
	}
	return img, nil
}

// panels splits the drawable area into the angle plot (top) and the
// accelerometer plot (bottom).
func panels() (anglePanel, accelPanel image.Rectangle) {
	plotHeight := (imageHeight - topBorder - bottomBorder - panelGap) / 2
	anglePanel = image.Rect(leftBorder, topBorder, imageWidth-rightBorder, topBorder+plotHeight)
	accelPanel = image.Rect(leftBorder, anglePanel.Max.Y+panelGap, imageWidth-rightBorder, anglePanel.Max.Y+panelGap+plotHeight)
	return anglePanel, accelPanel
}

func drawGrid(img *image.RGBA, panel image.Rectangle) {
	for x := panel.Min.X; x <= panel.Max.X; x++ {
		img.Set(x, panel.Min.Y, gridColor)
		img.Set(x, panel.Max.Y, gridColor)
	}
	for y := panel.Min.Y; y <= panel.Max.Y; y++ {
		img.Set(panel.Min.X, y, gridColor)
		img.Set(panel.Max.X, y, gridColor)
	}

	// quarter gridlines
	for i := 1; i < 4; i++ {
		y := panel.Min.Y + i*panel.Dy()/4
		for x := panel.Min.X; x <= panel.Max.X; x += 3 {
			img.Set(x, y, gridColor)
		}
	}
}

func intSeries(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

// drawSeries plots one polyline scaled into the panel.
func drawSeries(img *image.RGBA, panel image.Rectangle, data *ChartData, values []float64, low, high float64, c color.RGBA) {
	if high <= low {
		return
	}

	prevX, prevY := 0, 0
	for i, v := range values {
		x := timeToX(data, data.Times[i], panel)
		y := valueToY(v, low, high, panel)
		if i > 0 {
			drawLine(img, prevX, prevY, x, y, c)
		} else {
			img.Set(x, y, c)
		}
		prevX, prevY = x, y
	}
}

func timeToX(data *ChartData, t time.Time, panel image.Rectangle) int {
	span := data.TimestampEnd.Sub(data.TimestampStart)
	if span <= 0 {
		return panel.Min.X
	}
	frac := float64(t.Sub(data.TimestampStart)) / float64(span)
	return panel.Min.X + int(frac*float64(panel.Dx()))
}

func valueToY(v, low, high float64, panel image.Rectangle) int {
	frac := (v - low) / (high - low)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return panel.Max.Y - int(frac*float64(panel.Dy()))
}

// drawLine is a Bresenham segment between two points.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
