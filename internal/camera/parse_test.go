package camera

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigRange(t *testing.T) {
	out := "Label: ISO Speed\n" +
		"Readonly: 0\n" +
		"Type: RANGE\n" +
		"Current: 100\n" +
		"Bottom: 100\n" +
		"Top: 1600\n" +
		"Step: 100\n" +
		"END\n"

	report, err := ParseConfig(out)
	require.NoError(t, err)
	assert.Equal(t, KindRange, report.Kind)
	assert.Equal(t, "100", report.Current)
	require.Len(t, report.Choices, 16)
	assert.Equal(t, "100", report.Choices[0])
	assert.Equal(t, "200", report.Choices[1])
	assert.Equal(t, "1600", report.Choices[15])
}

func TestParseConfigRadio(t *testing.T) {
	out := "Label: Shutter Speed\n" +
		"Readonly: 0\n" +
		"Type: RADIO\n" +
		"Current: 1/125\n" +
		"Choice: 0 1/125\n" +
		"Choice: 1 1/250\n" +
		"END\n"

	report, err := ParseConfig(out)
	require.NoError(t, err)
	assert.Equal(t, KindRadio, report.Kind)
	assert.Equal(t, "1/125", report.Current)
	// Choices keep document order; indexes are discarded.
	assert.Equal(t, []string{"1/125", "1/250"}, report.Choices)
}

func TestParseConfigRadioChoiceWithSpaces(t *testing.T) {
	out := "Type: RADIO\n" +
		"Current: Manual\n" +
		"Choice: 0 Manual\n" +
		"Choice: 1 Aperture Priority\n"

	report, err := ParseConfig(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"Manual", "Aperture Priority"}, report.Choices)
}

func TestParseConfigRangeMissingBound(t *testing.T) {
	out := "Type: RANGE\n" +
		"Current: 100\n" +
		"Bottom: 100\n" +
		"Step: 100\n"

	_, err := ParseConfig(out)
	assert.Error(t, err)
}

func TestParseConfigRangeNonNumeric(t *testing.T) {
	out := "Type: RANGE\n" +
		"Current: 100\n" +
		"Bottom: 100\n" +
		"Top: fast\n" +
		"Step: 100\n"

	_, err := ParseConfig(out)
	assert.Error(t, err)
}

func TestParseConfigRangeNonPositiveStep(t *testing.T) {
	out := "Type: RANGE\nCurrent: 0\nBottom: 0\nTop: 10\nStep: 0\n"

	_, err := ParseConfig(out)
	assert.Error(t, err)
}

func TestParseConfigUnsupportedType(t *testing.T) {
	out := "Type: TOGGLE\nCurrent: 1\n"

	_, err := ParseConfig(out)
	assert.Error(t, err)
}

func TestParseConfigRadioWithoutChoices(t *testing.T) {
	out := "Type: RADIO\nCurrent: 1/125\n"

	_, err := ParseConfig(out)
	assert.Error(t, err)
}

func TestParseConfigSingleValueRange(t *testing.T) {
	out := fmt.Sprintf("Type: RANGE\nCurrent: %d\nBottom: %d\nTop: %d\nStep: %d\n", 5, 5, 5, 1)

	report, err := ParseConfig(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, report.Choices)
}
