package lead

import "strings"

// OtherOption is the sentinel a select box submits when the user types free text.
const OtherOption = "Other"

// Choice is either a catalogue value or user-typed text.
type Choice struct {
	value string
	other bool
}

func Known(value string) Choice {
	return Choice{value: strings.TrimSpace(value)}
}

func Other(text string) Choice {
	return Choice{value: strings.TrimSpace(text), other: true}
}

// ChoiceOf builds a Choice from a select value and its companion free-text field.
func ChoiceOf(selected, otherText string) Choice {
	if strings.TrimSpace(selected) == OtherOption {
		return Other(otherText)
	}
	return Known(selected)
}

func (c Choice) IsOther() bool {
	return c.other
}

// Resolve returns the plain value. An Other choice resolves to its text.
func (c Choice) Resolve() string {
	return c.value
}

func (c Choice) Empty() bool {
	return c.value == ""
}
