package stream

import (
	"errors"
	"strings"
)

// Options tunes an Accumulator. The zero value is ready to use.
type Options struct {
	// StrictFallback disables pattern extraction during recovery.
	StrictFallback bool
	// OnParseFailure, if set, is called for every line that fails to parse.
	OnParseFailure func(*ParseFailure)
}

// Result is the outcome of one accumulated stream.
type Result struct {
	Text                 string
	Complete             bool
	RecoveredViaFallback bool
	Strategy             Strategy
	// Lines counts non-blank lines received, ParseFailures the ones that did not decode.
	Lines         int
	ParseFailures int
	// Interrupted is the backend error that cut the stream short after some
	// text had arrived. Text then holds everything received before it.
	Interrupted error
}

// Accumulator folds the lines of a single request into a Result. It is not
// safe for concurrent use; every request owns its own.
type Accumulator struct {
	opts      Options
	fragments []string
	raw       []string
	complete  bool
	lines     int
	failures  int
	err       error
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator(opts Options) *Accumulator {
	return &Accumulator{opts: opts}
}

// Feed consumes one line. It returns done=true once no further input is wanted,
// either because a chunk carried done=true or because the backend reported an
// error. Parse failures are absorbed and never returned.
func (a *Accumulator) Feed(line string) (bool, error) {
	if a.complete || a.err != nil {
		return true, a.err
	}
	if strings.TrimSpace(line) == "" {
		return false, nil
	}
	a.lines++
	ch, err := ParseLine(line)
	if err != nil {
		var pf *ParseFailure
		if errors.As(err, &pf) {
			a.failures++
			a.raw = append(a.raw, pf.Raw)
			if a.opts.OnParseFailure != nil {
				a.opts.OnParseFailure(pf)
			}
			return false, nil
		}
		a.err = err
		return true, err
	}
	a.fragments = append(a.fragments, ch.Content)
	if ch.Done {
		a.complete = true
		return true, nil
	}
	return false, nil
}

// Complete reports whether a done=true chunk has been seen.
func (a *Accumulator) Complete() bool { return a.complete }

// Finish produces the final Result. A completed stream returns its text as is,
// even when empty. An unfinished stream returns whatever text it collected, and
// when there is none the raw unparsable lines go through Extract. A backend
// error fails the stream only when no text preceded it.
func (a *Accumulator) Finish() (Result, error) {
	res := Result{Complete: a.complete, Lines: a.lines, ParseFailures: a.failures}
	if a.err != nil {
		if text := strings.Join(a.fragments, ""); text != "" {
			res.Text = text
			res.Interrupted = a.err
			return res, nil
		}
		return res, a.failure(a.err)
	}
	if a.lines == 0 {
		return res, a.failure(ErrEmptyStream)
	}
	res.Text = strings.Join(a.fragments, "")
	if a.complete || res.Text != "" {
		return res, nil
	}
	if len(a.raw) == 0 {
		return res, a.failure(ErrIncompleteStream)
	}
	text, strategy, err := Extract(a.raw, a.opts.StrictFallback)
	if err != nil {
		return res, a.failure(errors.Join(ErrIncompleteStream, err))
	}
	res.Text = text
	res.RecoveredViaFallback = true
	res.Strategy = strategy
	return res, nil
}

func (a *Accumulator) failure(cause error) error {
	return &GenerationFailure{Cause: cause, Lines: a.lines, ParseFailures: a.failures}
}
