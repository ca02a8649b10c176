package ideas

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEffectiveVisibilityEmbargoBoundary(t *testing.T) {
	until := t0.Add(48 * time.Hour)
	idea := Idea{ID: "i1", CreatedAt: t0, Mode: EmbargoedUntil(until)}

	cases := []struct {
		name string
		now  time.Time
		want Visibility
	}{
		{"at creation", t0, Private},
		{"one nanosecond before", until.Add(-time.Nanosecond), Private},
		{"exactly at release", until, Public},
		{"long after", until.Add(365 * 24 * time.Hour), Public},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EffectiveVisibility(idea, tc.now); got != tc.want {
				t.Fatalf("EffectiveVisibility() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestEffectiveVisibilityImmediate(t *testing.T) {
	idea := Idea{ID: "i1", CreatedAt: t0, Mode: ImmediatePublic()}
	for _, offset := range []time.Duration{0, time.Second, 90 * 24 * time.Hour} {
		if got := EffectiveVisibility(idea, t0.Add(offset)); got != Public {
			t.Fatalf("EffectiveVisibility(+%s) = %s, want public", offset, got)
		}
	}
}

func TestZeroModeIsImmediate(t *testing.T) {
	var mode VisibilityMode
	if _, embargoed := mode.Embargo(); embargoed {
		t.Fatal("zero VisibilityMode must be immediate")
	}
}

func TestModeForImmediate(t *testing.T) {
	mode, err := ModeFor(0, t0)
	if err != nil {
		t.Fatalf("ModeFor(0) error = %v", err)
	}
	idea := Idea{CreatedAt: t0, Mode: mode}
	if got := EffectiveVisibility(idea, t0); got != Public {
		t.Fatalf("immediate idea at creation = %s, want public", got)
	}
}

func TestModeForOneWeek(t *testing.T) {
	mode, err := ModeFor(604800, t0)
	if err != nil {
		t.Fatalf("ModeFor(604800) error = %v", err)
	}
	idea := Idea{CreatedAt: t0, Mode: mode}
	if got := EffectiveVisibility(idea, t0.Add(604799*time.Second)); got != Private {
		t.Fatalf("visibility at T0+604799s = %s, want private", got)
	}
	if got := EffectiveVisibility(idea, t0.Add(604800*time.Second)); got != Public {
		t.Fatalf("visibility at T0+604800s = %s, want public", got)
	}
	if !PublicAt(idea).Equal(t0.Add(604800 * time.Second)) {
		t.Fatalf("PublicAt() = %s", PublicAt(idea))
	}
}

func TestModeForRejectsUnknownChoice(t *testing.T) {
	for _, seconds := range []int64{-1, 1, 3600, 604801} {
		if _, err := ModeFor(seconds, t0); !errors.Is(err, ErrUnknownEmbargo) {
			t.Fatalf("ModeFor(%d) error = %v, want ErrUnknownEmbargo", seconds, err)
		}
	}
}

func TestEmbargoChoicesReturnsCopy(t *testing.T) {
	choices := EmbargoChoices()
	if len(choices) != 4 {
		t.Fatalf("expected 4 choices, got %d", len(choices))
	}
	choices[0].Seconds = 99
	if EmbargoChoices()[0].Seconds != 0 {
		t.Fatal("EmbargoChoices must not expose internal state")
	}
}

func TestFilterMatch(t *testing.T) {
	owner := "u1"
	other := "u2"
	embargoed := Idea{ID: "e", OwnerID: &owner, CreatedAt: t0, Mode: EmbargoedUntil(t0.Add(time.Hour))}
	public := Idea{ID: "p", OwnerID: &other, CreatedAt: t0}
	released := Idea{ID: "r", CreatedAt: t0}

	pub := PublicFilter(t0)
	if pub.Match(embargoed) || !pub.Match(public) || !pub.Match(released) {
		t.Fatal("public filter mismatch at t0")
	}
	later := PublicFilter(t0.Add(time.Hour))
	if !later.Match(embargoed) {
		t.Fatal("embargoed idea must match public filter once released")
	}

	mine := OwnerFilter(owner)
	if !mine.Match(embargoed) || mine.Match(public) || mine.Match(released) {
		t.Fatal("owner filter mismatch")
	}
	if !(Filter{}).Match(released) {
		t.Fatal("empty filter must match everything")
	}
}
