package catalog

import (
	"cmp"
	"fmt"
	"slices"
)

// Tier is one step of the graduated format search: a multi-stream format is
// admitted when its short side is at or below MaxShortSide.
type Tier struct {
	Name         string
	MaxShortSide int
}

// Admits reports whether f is a candidate at this tier.
func (t Tier) Admits(f Format) bool {
	return f.MultiStream && f.ShortSide() <= t.MaxShortSide
}

// DefaultTiers returns the resolution ceilings tried in ascending order.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "720p", MaxShortSide: 720},
		{Name: "1080p", MaxShortSide: 1080},
		{Name: "1440p", MaxShortSide: 1440},
		{Name: "2160p", MaxShortSide: 2160},
	}
}

// FormatPair holds the formats chosen for the two devices of a dual session.
// Tier is empty when no tier admitted both devices and each device fell back
// to its own best multi-stream format.
type FormatPair struct {
	Primary   Format `json:"primary"`
	Secondary Format `json:"secondary"`
	Tier      string `json:"tier,omitempty"`
}

// SelectFormatPair picks compatible formats for two devices. Tiers are tried
// in order and the first tier where both devices have a candidate wins. The
// result depends only on the inputs.
func (c *Catalog) SelectFormatPair(primary, secondary Device) (FormatPair, error) {
	return selectFormatPair(c.tiers, primary, secondary)
}

func selectFormatPair(tiers []Tier, primary, secondary Device) (FormatPair, error) {
	for _, tier := range tiers {
		a, okA := bestAdmitted(primary.Formats, tier.Admits)
		b, okB := bestAdmitted(secondary.Formats, tier.Admits)
		if okA && okB {
			return FormatPair{Primary: a, Secondary: b, Tier: tier.Name}, nil
		}
	}

	multi := func(f Format) bool { return f.MultiStream }
	a, okA := bestAdmitted(primary.Formats, multi)
	if !okA {
		return FormatPair{}, &FormatError{DeviceID: primary.ID, Err: ErrNoMultiStreamFormat}
	}
	b, okB := bestAdmitted(secondary.Formats, multi)
	if !okB {
		return FormatPair{}, &FormatError{DeviceID: secondary.ID, Err: ErrNoMultiStreamFormat}
	}
	return FormatPair{Primary: a, Secondary: b}, nil
}

func bestAdmitted(formats []Format, admit func(Format) bool) (Format, bool) {
	var candidates []Format
	for _, f := range formats {
		if admit(f) {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return Format{}, false
	}
	return slices.MaxFunc(candidates, compareFormats), true
}

// compareFormats orders by width, then max frame rate, then height, then ID.
// The ID tie-break keeps the choice stable when two formats share dimensions.
func compareFormats(a, b Format) int {
	if c := cmp.Compare(a.Width, b.Width); c != 0 {
		return c
	}
	if c := cmp.Compare(a.MaxFrameRate(), b.MaxFrameRate()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Height, b.Height); c != 0 {
		return c
	}
	// Lower ID wins so the first enumerated of two identical formats is kept.
	return cmp.Compare(b.ID, a.ID)
}

func (p FormatPair) String() string {
	tier := p.Tier
	if tier == "" {
		tier = "independent"
	}
	return fmt.Sprintf("%s+%s (%s)", p.Primary, p.Secondary, tier)
}
