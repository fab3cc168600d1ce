package charting

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"prodmon/database"
)

// Generator handles chart image creation
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateHourly creates a PNG comparing per-slot plan against actual
// output across the hourly table.
func (g *Generator) GenerateHourly(s *database.ProductionSession) ([]byte, error) {
	if len(s.TimeSlots) == 0 {
		return nil, fmt.Errorf("no slots to chart")
	}

	planSeries := chart.ContinuousSeries{
		Name: "Plan",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("95a5a6"),
			StrokeWidth: 2,
		},
	}
	actualSeries := chart.ContinuousSeries{
		Name: "Actual",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("e74c3c"),
			StrokeWidth: 2,
		},
	}

	var ticks []chart.Tick
	for i, slot := range s.TimeSlots {
		x := float64(i + 1)
		planSeries.XValues = append(planSeries.XValues, x)
		planSeries.YValues = append(planSeries.YValues, slot.Plan)
		actualSeries.XValues = append(actualSeries.XValues, x)
		actualSeries.YValues = append(actualSeries.YValues, slot.Actual)

		label := slot.TimeSlot
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		ticks = append(ticks, chart.Tick{Value: x, Label: label})
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s %s - Hourly Plan vs Actual", s.Line, s.Date),
		Width:  800,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "Time Slot",
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name: "Units",
		},
		Series: []chart.Series{planSeries, actualSeries},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	buffer := bytes.NewBuffer([]byte{})
	err := graph.Render(chart.PNG, buffer)
	return buffer.Bytes(), err
}

// GenerateCumulative creates a PNG of the cumulative plan against the
// running actual total, the shape the variance column tracks.
func (g *Generator) GenerateCumulative(s *database.ProductionSession) ([]byte, error) {
	if len(s.TimeSlots) == 0 {
		return nil, fmt.Errorf("no slots to chart")
	}

	planSeries := chart.ContinuousSeries{
		Name: "Cumulative Plan",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("95a5a6"),
			StrokeWidth: 2,
		},
	}
	actualSeries := chart.ContinuousSeries{
		Name: "Cumulative Actual",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("e74c3c"),
			StrokeWidth: 2,
		},
	}

	runningActual := 0.0
	for i, slot := range s.TimeSlots {
		x := float64(i + 1)
		runningActual += slot.Actual

		planSeries.XValues = append(planSeries.XValues, x)
		planSeries.YValues = append(planSeries.YValues, slot.PlanCumulative)
		actualSeries.XValues = append(actualSeries.XValues, x)
		actualSeries.YValues = append(actualSeries.YValues, runningActual)
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s %s - Cumulative Trend", s.Line, s.Date),
		Width:  800,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name: "Slot Sequence",
		},
		YAxis: chart.YAxis{
			Name: "Units",
		},
		Series: []chart.Series{planSeries, actualSeries},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	buffer := bytes.NewBuffer([]byte{})
	err := graph.Render(chart.PNG, buffer)
	return buffer.Bytes(), err
}
