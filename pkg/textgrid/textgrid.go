// Package textgrid reads and writes Praat TextGrid interval tiers in
// the long ooTextFile format.
package textgrid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrParse reports a malformed TextGrid input.
var ErrParse = errors.New("textgrid: parse error")

// Interval is one labeled span on a tier. Empty-text intervals mark
// gaps and are skipped on parse.
type Interval struct {
	Start float64
	End   float64
	Text  string
}

// Tier is a named interval tier.
type Tier struct {
	Name      string
	Intervals []Interval
}

// End returns the end time of the tier's last interval, or 0.
func (t Tier) End() float64 {
	if len(t.Intervals) == 0 {
		return 0
	}
	return t.Intervals[len(t.Intervals)-1].End
}

// WriteFile writes tiers to a TextGrid file.
func WriteFile(path string, tiers []Tier) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("textgrid: %w", err)
	}
	if err := Write(f, tiers); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("textgrid: %w", err)
	}
	return nil
}

// Write serializes tiers in the long TextGrid format.
func Write(w io.Writer, tiers []Tier) error {
	xmax := 0.0
	for _, t := range tiers {
		if end := t.End(); end > xmax {
			xmax = end
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, `File type = "ooTextFile"`)
	fmt.Fprintln(bw, `Object class = "TextGrid"`)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "xmin = 0")
	fmt.Fprintf(bw, "xmax = %s\n", formatTime(xmax))
	fmt.Fprintln(bw, "tiers? <exists>")
	fmt.Fprintf(bw, "size = %d\n", len(tiers))
	fmt.Fprintln(bw, "item []:")
	for i, t := range tiers {
		fmt.Fprintf(bw, "    item [%d]:\n", i+1)
		fmt.Fprintln(bw, `        class = "IntervalTier"`)
		fmt.Fprintf(bw, "        name = %q\n", t.Name)
		fmt.Fprintln(bw, "        xmin = 0")
		fmt.Fprintf(bw, "        xmax = %s\n", formatTime(t.End()))
		fmt.Fprintf(bw, "        intervals: size = %d\n", len(t.Intervals))
		for j, iv := range t.Intervals {
			fmt.Fprintf(bw, "        intervals [%d]:\n", j+1)
			fmt.Fprintf(bw, "            xmin = %s\n", formatTime(iv.Start))
			fmt.Fprintf(bw, "            xmax = %s\n", formatTime(iv.End))
			fmt.Fprintf(bw, "            text = %q\n", iv.Text)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("textgrid: %w", err)
	}
	return nil
}

func formatTime(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// ParseFile reads a TextGrid file.
func ParseFile(path string) ([]Tier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("textgrid: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads interval tiers from a long-format TextGrid stream.
// Intervals with empty text are dropped.
func Parse(r io.Reader) ([]Tier, error) {
	var (
		tiers      []Tier
		xmin, xmax float64
		sawHeader  bool
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "Object class"):
			if !strings.Contains(line, `"TextGrid"`) {
				return nil, fmt.Errorf("%w: not a TextGrid object", ErrParse)
			}
			sawHeader = true

		case strings.HasPrefix(line, "name ="):
			name, err := quotedValue(line)
			if err != nil {
				return nil, err
			}
			tiers = append(tiers, Tier{Name: name})

		case strings.HasPrefix(line, "xmin"):
			v, err := numericValue(line)
			if err != nil {
				return nil, err
			}
			xmin = v

		case strings.HasPrefix(line, "xmax"):
			v, err := numericValue(line)
			if err != nil {
				return nil, err
			}
			xmax = v

		case strings.HasPrefix(line, "text ="):
			if len(tiers) == 0 {
				return nil, fmt.Errorf("%w: interval text before any tier", ErrParse)
			}
			text, err := quotedValue(line)
			if err != nil {
				return nil, err
			}
			if text == "" {
				continue
			}
			cur := &tiers[len(tiers)-1]
			cur.Intervals = append(cur.Intervals, Interval{Start: xmin, End: xmax, Text: text})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("textgrid: %w", err)
	}
	if !sawHeader {
		return nil, fmt.Errorf("%w: missing header", ErrParse)
	}
	return tiers, nil
}

func numericValue(line string) (float64, error) {
	_, val, ok := strings.Cut(line, "=")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrParse, line)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrParse, line)
	}
	return v, nil
}

func quotedValue(line string) (string, error) {
	_, val, ok := strings.Cut(line, "=")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrParse, line)
	}
	val = strings.TrimSpace(val)
	unq, err := strconv.Unquote(val)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrParse, line)
	}
	return unq, nil
}
