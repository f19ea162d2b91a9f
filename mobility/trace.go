package mobility

import (
	"bufio"
	"io"
	"strconv"

	"github.com/syifan/manetsim"
)

// A TraceWriter writes course changes in the ns-3 ascii mobility format:
//
//	now=+1.5e+09ns node=3 pos=12.5:700:0 vel=0:0:0
type TraceWriter struct {
	w   *bufio.Writer
	err error
}

// NewTraceWriter creates a TraceWriter on top of w.
func NewTraceWriter(w io.Writer) *TraceWriter {
	return &TraceWriter{w: bufio.NewWriter(w)}
}

// CourseChanged writes one trace line.
func (t *TraceWriter) CourseChanged(c CourseChange) {
	if t.err != nil {
		return
	}

	_, t.err = t.w.WriteString(FormatCourseChange(c) + "\n")
}

// Flush writes buffered lines and returns the first write error.
func (t *TraceWriter) Flush() error {
	if t.err != nil {
		return t.err
	}

	return t.w.Flush()
}

// FormatCourseChange renders a course change as one trace line.
func FormatCourseChange(c CourseChange) string {
	ns := float64(c.Time) * 1e9

	return "now=+" + manetsim.FormatFloat(ns) + "ns" +
		" node=" + strconv.Itoa(c.Node) +
		" pos=" + formatVector(c.Position) +
		" vel=" + formatVector(c.Velocity)
}

func formatVector(v manetsim.Vector) string {
	return manetsim.FormatFloat(v.X) + ":" +
		manetsim.FormatFloat(v.Y) + ":" +
		manetsim.FormatFloat(v.Z)
}
