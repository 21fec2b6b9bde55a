package viewer

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pose.report/internal/pose/l2frames"
	"github.com/banshee-data/pose.report/internal/pose/report"
)

// missingValue is how echarts marks a gap in a line series.
const missingValue = "-"

// jointAxis reads the joint and axis query parameters, defaulting to the
// left hip's y coordinate.
func jointAxis(r *http.Request) (l2frames.Joint, l2frames.Axis, error) {
	j, a := l2frames.LeftHip, l2frames.AxisY
	var err error
	if v := r.URL.Query().Get("joint"); v != "" {
		if j, err = l2frames.ParseJoint(v); err != nil {
			return 0, 0, err
		}
	}
	if v := r.URL.Query().Get("axis"); v != "" {
		if a, err = l2frames.ParseAxis(v); err != nil {
			return 0, 0, err
		}
	}
	return j, a, nil
}

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = opts.LineData{Value: missingValue}
			continue
		}
		out[i] = opts.LineData{Value: v}
	}
	return out
}

// handleTrajectoryChart renders the raw and smoothed trajectory of one
// joint axis as an interactive go-echarts line chart.
func (s *Server) handleTrajectoryChart(w http.ResponseWriter, r *http.Request) {
	j, a, err := jointAxis(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	pkt, ok := s.loadPacket(w, r)
	if !ok {
		return
	}

	raw, smoothed, normalized := report.JointSeries(pkt, j, a)
	frames := make([]int, pkt.FrameCount)
	for i := range frames {
		frames[i] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pose trajectory", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s %s", j, a), Subtitle: fmt.Sprintf("video=%s frames=%d", pkt.VideoID, pkt.FrameCount)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: a.String() + " (px)", Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(frames).
		AddSeries("raw", lineData(raw)).
		AddSeries("smoothed", lineData(smoothed)).
		AddSeries("normalized", lineData(normalized), charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))
	line.ExtendYAxis(opts.YAxis{Name: "normalized", Scale: opts.Bool(true)})

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		opsf("render trajectory chart: %v", err)
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleTrajectoryPNG renders the same trajectory as a static PNG.
func (s *Server) handleTrajectoryPNG(w http.ResponseWriter, r *http.Request) {
	j, a, err := jointAxis(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	pkt, ok := s.loadPacket(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.PacketTrajectory(pkt, j, a).WritePNG(&buf); err != nil {
		opsf("render trajectory png: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to render plot")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
