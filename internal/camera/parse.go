package camera

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the choice-encoding of a setting as reported by the device tool.
type Kind string

const (
	// KindRange encodes choices as an inclusive arithmetic progression.
	KindRange Kind = "RANGE"

	// KindRadio encodes choices as an enumerated list.
	KindRadio Kind = "RADIO"
)

// ConfigReport is the structured form of one get-configuration response.
// RANGE progressions are already materialized into Choices, so consumers
// never see Bottom/Top/Step.
type ConfigReport struct {
	Kind    Kind
	Current string
	Choices []string
}

// ParseConfig parses the device tool's free-text configuration output.
//
// The grammar is line oriented: `<Key>: <value>` pairs, with `Choice:` lines
// repeating in document order as `Choice: <index> <value>`. Recognized keys
// are Type, Current, Bottom, Top, Step and Choice; anything else is ignored.
// The parser is independent of any process execution so it can be exercised
// against captured tool output directly.
func ParseConfig(text string) (*ConfigReport, error) {
	var (
		report          ConfigReport
		bottom, top, st string
	)

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "Type":
			report.Kind = Kind(value)
		case "Current":
			report.Current = value
		case "Bottom":
			bottom = value
		case "Top":
			top = value
		case "Step":
			st = value
		case "Choice":
			// `Choice: <index> <value>`; the index is discarded and the
			// value may itself contain spaces.
			_, choice, ok := strings.Cut(value, " ")
			if !ok {
				return nil, fmt.Errorf("malformed choice line %q", sc.Text())
			}
			report.Choices = append(report.Choices, strings.TrimSpace(choice))
		}
	}

	switch report.Kind {
	case KindRange:
		choices, err := expandRange(bottom, top, st)
		if err != nil {
			return nil, err
		}
		report.Choices = choices
	case KindRadio:
		// Choices were collected in document order above.
	default:
		return nil, fmt.Errorf("unsupported setting type %q", report.Kind)
	}

	if len(report.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	return &report, nil
}

// expandRange materializes the inclusive progression bottom..top stepping by
// step, string encoded as the device expects values to be written back.
func expandRange(bottom, top, step string) ([]string, error) {
	b, err := strconv.Atoi(bottom)
	if err != nil {
		return nil, fmt.Errorf("missing or non-numeric Bottom %q", bottom)
	}
	t, err := strconv.Atoi(top)
	if err != nil {
		return nil, fmt.Errorf("missing or non-numeric Top %q", top)
	}
	s, err := strconv.Atoi(step)
	if err != nil {
		return nil, fmt.Errorf("missing or non-numeric Step %q", step)
	}
	if s <= 0 {
		return nil, fmt.Errorf("non-positive Step %d", s)
	}

	var choices []string
	for v := b; v <= t; v += s {
		choices = append(choices, strconv.Itoa(v))
	}
	return choices, nil
}
