package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"lingocast/internal/stage"
	"lingocast/internal/workflow"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// eventPrinter renders a run's events. On a terminal each stage gets a
// progress bar; otherwise one line is printed per stage and per outcome.
type eventPrinter struct {
	out     io.Writer
	tty     bool
	json    bool
	bar     *progressbar.ProgressBar
	current stage.Stage

	ok   *color.Color
	warn *color.Color
	bad  *color.Color
	dim  *color.Color
}

func newEventPrinter(out io.Writer, jsonLines bool) *eventPrinter {
	p := &eventPrinter{
		out:  out,
		tty:  isTerminal(out),
		json: jsonLines,
		ok:   color.New(color.FgGreen, color.Bold),
		warn: color.New(color.FgYellow),
		bad:  color.New(color.FgRed, color.Bold),
		dim:  color.New(color.Faint),
	}
	if !p.tty {
		for _, c := range []*color.Color{p.ok, p.warn, p.bad, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

func (p *eventPrinter) handle(e workflow.Event) {
	if p.json {
		p.writeJSON(e)
		return
	}
	switch ev := e.(type) {
	case workflow.Progress:
		p.progress(ev)
	case workflow.Complete:
		p.finishBar()
		r := ev.Result
		p.ok.Fprintf(p.out, "Done: %s\n", r.OutputPath)
		details := fmt.Sprintf("  %d cues, %s -> %s, %s subtitles", r.CueCount, r.SourceLanguage, r.TargetLanguage, r.SubtitleMode)
		if r.SizeBytes > 0 {
			details += ", " + humanize.IBytes(uint64(r.SizeBytes))
		}
		if r.Duration > 0 {
			details += fmt.Sprintf(", took %s", r.Duration)
		}
		if !r.Translated {
			details += " (untranslated)"
		}
		p.dim.Fprintln(p.out, details)
	case workflow.Error:
		p.finishBar()
		label := "Run"
		if ev.Stage.Valid() {
			label = ev.Stage.Label()
		}
		p.bad.Fprintf(p.out, "%s failed [%s]\n", label, ev.Code)
		fmt.Fprintf(p.out, "  %s\n", ev.Message)
		if ev.Suggestion != "" {
			p.warn.Fprintf(p.out, "  Hint: %s\n", ev.Suggestion)
		}
	case workflow.Cancelled:
		p.finishBar()
		p.warn.Fprintln(p.out, "Cancelled; the checkpoint was kept. Resume with `lingocast resume <job-id>`.")
	}
}

func (p *eventPrinter) progress(ev workflow.Progress) {
	if ev.Stage != p.current {
		p.finishBar()
		p.current = ev.Stage
		title := ev.Stage.Label()
		if ev.Option != "" {
			title += " (" + ev.Option + ")"
		}
		if !p.tty {
			fmt.Fprintf(p.out, "==> %s\n", title)
			return
		}
		p.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(title),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.out) }),
		)
	}
	if p.bar == nil {
		return
	}
	if ev.Percent >= 0 {
		_ = p.bar.Set(int(ev.Percent))
	}
}

func (p *eventPrinter) finishBar() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

type eventRecord struct {
	Kind       workflow.EventKind `json:"kind"`
	Stage      string             `json:"stage,omitempty"`
	Percent    *float64           `json:"percent,omitempty"`
	Message    string             `json:"message,omitempty"`
	Option     string             `json:"option,omitempty"`
	Code       string             `json:"code,omitempty"`
	Suggestion string             `json:"suggestion,omitempty"`
	Result     any                `json:"result,omitempty"`
}

func (p *eventPrinter) writeJSON(e workflow.Event) {
	rec := eventRecord{Kind: e.Kind()}
	switch ev := e.(type) {
	case workflow.Progress:
		pct := ev.Percent
		rec.Stage = ev.Stage.String()
		rec.Percent = &pct
		rec.Message = ev.Message
		rec.Option = ev.Option
	case workflow.Complete:
		rec.Result = ev.Result
	case workflow.Error:
		if ev.Stage.Valid() {
			rec.Stage = ev.Stage.String()
		}
		rec.Code = string(ev.Code)
		rec.Message = ev.Message
		rec.Suggestion = ev.Suggestion
	case workflow.Cancelled:
		if ev.Stage.Valid() {
			rec.Stage = ev.Stage.String()
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	fmt.Fprintln(p.out, string(data))
}
