package session

import (
	"fmt"

	"github.com/samber/lo"
)

// Tab is one of the mutually exclusive input views.
type Tab string

const (
	TabSymptoms    Tab = "symptoms"
	TabImage       Tab = "image"
	TabPatientData Tab = "patient-data"
)

// AllTabs lists the tabs in display order.
var AllTabs = []Tab{TabSymptoms, TabImage, TabPatientData}

func (t Tab) Valid() bool {
	return lo.Contains(AllTabs, t)
}

// Next returns the tab after t, wrapping around.
func (t Tab) Next() Tab {
	return AllTabs[(lo.IndexOf(AllTabs, t)+1)%len(AllTabs)]
}

// Prev returns the tab before t, wrapping around.
func (t Tab) Prev() Tab {
	idx := lo.IndexOf(AllTabs, t)
	if idx < 0 {
		return AllTabs[0]
	}
	return AllTabs[(idx+len(AllTabs)-1)%len(AllTabs)]
}

func ParseTab(s string) (Tab, error) {
	tab := Tab(s)
	if !tab.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTab, s)
	}
	return tab, nil
}

// ErrorKind identifies a user-facing error without carrying display text.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorEmptySymptoms
	ErrorNoImageSelected
	ErrorPredictionFailed
)

var errorKindNames = map[ErrorKind]string{
	ErrorNone:             "none",
	ErrorEmptySymptoms:    "empty_symptoms",
	ErrorNoImageSelected:  "no_image_selected",
	ErrorPredictionFailed: "prediction_failed",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Message is the text shown to the user for k.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorEmptySymptoms:
		return "Enter symptoms to predict disease."
	case ErrorNoImageSelected:
		return "Select an image to analyze."
	case ErrorPredictionFailed:
		return "Error predicting disease."
	default:
		return ""
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	if _, ok := errorKindNames[k]; !ok {
		return nil, fmt.Errorf("unknown error kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *ErrorKind) UnmarshalText(text []byte) error {
	kind, ok := lo.FindKey(errorKindNames, string(text))
	if !ok {
		return fmt.Errorf("unknown error kind %q", string(text))
	}
	*k = kind
	return nil
}

// ViewState is everything a view needs to render the session.
type ViewState struct {
	Tab       Tab    `json:"tab"`
	Symptoms  string `json:"symptoms"`
	ImageName string `json:"image_name,omitempty"`

	// Label is the last disease label returned by the service.
	Label string `json:"label,omitempty"`
	// Failure is ErrorPredictionFailed when the last request failed.
	Failure ErrorKind `json:"failure"`
	// Error is a validation error from the last submit attempt.
	Error ErrorKind `json:"error"`

	Pending bool `json:"pending"`
}

// Result is the text for the result area: the label, or the failure message.
func (s ViewState) Result() string {
	if s.Failure != ErrorNone {
		return s.Failure.Message()
	}
	return s.Label
}

func (s ViewState) ErrorMessage() string {
	return s.Error.Message()
}

func (s ViewState) HasImage() bool {
	return s.ImageName != ""
}
