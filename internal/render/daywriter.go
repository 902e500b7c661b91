// ABOUTME: Stateful writer emitting day and time section markers around items
// ABOUTME: Opens and closes nested groups exactly at bucket transitions

package render

import (
	"fmt"
	"html"
	"io"
	"time"

	"github.com/harper/gather/internal/timeutil"
)

// DayWriter wraps an output stream and emits enclosing section markup as
// consecutive items cross day and time-bucket boundaries. Day and time
// sections are independently toggleable; at most two group levels are
// ever open.
type DayWriter struct {
	w            io.Writer
	dayFormat    string
	timeFormat   string
	daySections  bool
	timeSections bool

	last     time.Time
	haveLast bool
	open     int
}

// NewDayWriter creates a DayWriter using the given formats and toggles.
func NewDayWriter(w io.Writer, dayFormat, timeFormat string, daySections, timeSections bool) *DayWriter {
	return &DayWriter{
		w:            w,
		dayFormat:    dayFormat,
		timeFormat:   timeFormat,
		daySections:  daySections,
		timeSections: timeSections,
	}
}

// Time transitions the writer to an item at time t, closing and opening
// sections as required. Call it before writing each item.
func (dw *DayWriter) Time(t time.Time) {
	newDay := !dw.haveLast || !timeutil.SameDay(dw.last, t)
	newBucket := !dw.haveLast || !timeutil.SameBucket(dw.last, t)

	if dw.daySections && newDay {
		dw.closeTo(0)
		fmt.Fprintf(dw.w, "<div class=\"day\">\n<h2>%s</h2>\n", html.EscapeString(t.Format(dw.dayFormat)))
		dw.open++
	}
	if dw.timeSections && newBucket {
		keep := 0
		if dw.daySections {
			keep = 1
		}
		dw.closeTo(keep)
		fmt.Fprintf(dw.w, "<div class=\"time\">\n<h3>%s</h3>\n", html.EscapeString(t.Format(dw.timeFormat)))
		dw.open++
	}

	dw.last = t
	dw.haveLast = true
}

// Close shuts every group still open. Call it once after the last item.
func (dw *DayWriter) Close() {
	dw.closeTo(0)
}

func (dw *DayWriter) closeTo(n int) {
	for dw.open > n {
		fmt.Fprintln(dw.w, "</div>")
		dw.open--
	}
}
