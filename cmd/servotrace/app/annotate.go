package app

import (
	"fmt"
	"image"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/codeddarkness/controller-new/internal/servo"
	"github.com/codeddarkness/controller-new/internal/storage"
)

const (
	dpi     float64 = 72
	size    float64 = 13
	spacing float64 = 1.2
)

type Annotator struct {
	context *freetype.Context
}

func NewAnnotator() (*Annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(size)
	context.SetSrc(image.White)
	context.SetHinting(font.HintingFull)

	return &Annotator{context: context}, nil
}

func (a *Annotator) Annotate(img *image.RGBA, data *ChartData, session storage.Session, anglePanel, accelPanel image.Rectangle) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	low, high := data.accelBounds()

	ops := []struct {
		msg string
		fn  func() error
	}{
		{"drawing time scale", func() error { return a.drawTimeScale(img, data, accelPanel) }},
		{"drawing angle scale", func() error {
			return a.drawValueScale(anglePanel, float64(servo.MinAngle), float64(servo.MaxAngle), "%.0f°")
		}},
		{"drawing accel scale", func() error { return a.drawValueScale(accelPanel, low, high, "%.1f") }},
		{"drawing legend", func() error { return a.drawLegend(img, anglePanel, accelPanel) }},
		{"drawing info", func() error { return a.drawInfo(img, data, session) }},
	}
	for _, op := range ops {
		if err := op.fn(); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

// drawTimeScale labels the shared X axis under the lower panel.
func (a *Annotator) drawTimeScale(img *image.RGBA, data *ChartData, panel image.Rectangle) error {
	count := panel.Dx() / 200
	if count < 2 {
		count = 2
	}
	secsPerLabel := data.Duration().Seconds() / float64(count)

	for si := 0; si <= count; si++ {
		point := data.TimestampStart.Add(time.Duration(secsPerLabel*float64(si)) * time.Second)
		px := timeToX(data, point, panel)

		// tick mark below the panel
		for i := 0; i < 6; i++ {
			img.Set(px, panel.Max.Y+i, image.White)
		}

		pt := freetype.Pt(px-25, panel.Max.Y+22)
		if _, err := a.context.DrawString(point.Local().Format("15:04:05"), pt); err != nil {
			return err
		}
	}

	return nil
}

// drawValueScale labels the Y axis of one panel at its quarter gridlines.
func (a *Annotator) drawValueScale(panel image.Rectangle, low, high float64, format string) error {
	for i := 0; i <= 4; i++ {
		v := low + (high-low)*float64(4-i)/4
		y := panel.Min.Y + i*panel.Dy()/4

		pt := freetype.Pt(8, y+5)
		if _, err := a.context.DrawString(fmt.Sprintf(format, v), pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *Annotator) drawLegend(img *image.RGBA, anglePanel, accelPanel image.Rectangle) error {
	angleLabels := [servo.NumChannels]string{"channel 0", "channel 1", "channel 2", "channel 3"}
	for ch, label := range angleLabels {
		x := anglePanel.Min.X + ch*140
		for i := 0; i < 20; i++ {
			img.Set(x+i, anglePanel.Min.Y-12, channelColors[ch])
			img.Set(x+i, anglePanel.Min.Y-11, channelColors[ch])
		}
		pt := freetype.Pt(x+25, anglePanel.Min.Y-6)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return err
		}
	}

	accelLabels := [3]string{"accel X", "accel Y", "accel Z"}
	for i, label := range accelLabels {
		x := accelPanel.Min.X + i*140
		for j := 0; j < 20; j++ {
			img.Set(x+j, accelPanel.Min.Y-12, accelColors[i])
			img.Set(x+j, accelPanel.Min.Y-11, accelColors[i])
		}
		pt := freetype.Pt(x+25, accelPanel.Min.Y-6)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *Annotator) drawInfo(img *image.RGBA, data *ChartData, session storage.Session) error {
	imgSize := img.Bounds().Size()
	top, left := imgSize.Y-55, leftBorder

	strings := []string{
		fmt.Sprintf("Session %d (%s controller), started %s",
			session.ID, session.ControllerType, humanize.Time(session.StartTime)),
		fmt.Sprintf("%s of data from %s to %s, %s snapshots",
			data.Duration().Round(time.Second),
			data.TimestampStart.Local().Format(time.DateTime),
			data.TimestampEnd.Local().Format(time.DateTime),
			humanize.Comma(int64(data.Len()))),
	}

	pt := freetype.Pt(left, top)
	for _, s := range strings {
		if _, err := a.context.DrawString(s, pt); err != nil {
			return err
		}
		pt.Y += a.context.PointToFixed(size * spacing)
	}

	return nil
}
