package ideas

import (
	"errors"
	"time"
)

// EmbargoChoice is one of the fixed hiding periods offered at upload.
type EmbargoChoice struct {
	Seconds int64  `json:"seconds"`
	Label   string `json:"label"`
}

var embargoChoices = []EmbargoChoice{
	{Seconds: 0, Label: "Make public immediately"},
	{Seconds: 7 * 24 * 60 * 60, Label: "Hidden for 1 week"},
	{Seconds: 14 * 24 * 60 * 60, Label: "Hidden for 2 weeks"},
	{Seconds: 30 * 24 * 60 * 60, Label: "Hidden for 1 month"},
}

var ErrUnknownEmbargo = errors.New("unknown embargo choice")

// EmbargoChoices lists the accepted hiding periods, shortest first.
func EmbargoChoices() []EmbargoChoice {
	out := make([]EmbargoChoice, len(embargoChoices))
	copy(out, embargoChoices)
	return out
}

// ModeFor maps an embargo choice to the visibility policy of an idea
// created at now. Zero means public immediately.
func ModeFor(seconds int64, now time.Time) (VisibilityMode, error) {
	if !knownEmbargo(seconds) {
		return VisibilityMode{}, ErrUnknownEmbargo
	}
	if seconds == 0 {
		return ImmediatePublic(), nil
	}
	return EmbargoedUntil(now.Add(time.Duration(seconds) * time.Second)), nil
}

func knownEmbargo(seconds int64) bool {
	for _, choice := range embargoChoices {
		if choice.Seconds == seconds {
			return true
		}
	}
	return false
}
