// Package catalog enumerates capture devices, ranks them for the primary and
// secondary roles and negotiates capture formats for dual-device operation.
package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/smazurov/dualcam/internal/logging"
)

// Errors returned by the catalog.
var (
	ErrNoDevices           = errors.New("no video capture devices")
	ErrNoSecondary         = errors.New("no secondary device available")
	ErrNoMultiStreamFormat = errors.New("no multi-stream format")
	ErrNoPair              = errors.New("no compatible device pair")
)

// FormatError reports which device failed format negotiation.
type FormatError struct {
	DeviceID string
	Err      error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("device %s: %v", e.DeviceID, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Catalog ranks devices and selects formats. It holds no device state of its
// own; every call goes back to the provider.
type Catalog struct {
	provider DeviceProvider
	tiers    []Tier
	logger   logging.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithTiers replaces the default resolution tiers.
func WithTiers(tiers []Tier) Option {
	return func(c *Catalog) {
		c.tiers = slices.Clone(tiers)
	}
}

// New creates a catalog backed by provider.
func New(provider DeviceProvider, logger logging.Logger, opts ...Option) *Catalog {
	c := &Catalog{
		provider: provider,
		tiers:    DefaultTiers(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the underlying device provider.
func (c *Catalog) Provider() DeviceProvider {
	return c.provider
}

// Tiers returns the resolution tiers in search order.
func (c *Catalog) Tiers() []Tier {
	return slices.Clone(c.tiers)
}

// PrimaryCandidates returns video devices ranked for the primary role:
// back-facing first, then the richest kind.
func (c *Catalog) PrimaryCandidates(ctx context.Context) ([]Device, error) {
	devices, err := c.provider.VideoDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	ranked := slices.Clone(devices)
	slices.SortStableFunc(ranked, func(a, b Device) int {
		return rankFor(PositionBack, a, b)
	})
	return ranked, nil
}

// SecondaryCandidates returns devices other than primaryID ranked for the
// secondary role: front-facing first, then the richest kind.
func (c *Catalog) SecondaryCandidates(ctx context.Context, primaryID string) ([]Device, error) {
	devices, err := c.provider.VideoDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	ranked := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.ID != primaryID {
			ranked = append(ranked, d)
		}
	}
	if len(ranked) == 0 {
		return nil, ErrNoSecondary
	}
	slices.SortStableFunc(ranked, func(a, b Device) int {
		return rankFor(PositionFront, a, b)
	})
	return ranked, nil
}

// rankFor orders devices with the preferred position first, then by kind
// descending, then by ID so equal devices never swap between calls.
func rankFor(preferred Position, a, b Device) int {
	ap, bp := a.Position == preferred, b.Position == preferred
	if ap != bp {
		if ap {
			return -1
		}
		return 1
	}
	if a.Kind != b.Kind {
		return cmp.Compare(b.Kind, a.Kind)
	}
	return cmp.Compare(a.ID, b.ID)
}

// DualCandidate is a device pair together with the formats selected for it.
type DualCandidate struct {
	Primary   Device
	Secondary Device
	Pair      FormatPair
}

// FindDualCandidate walks ranked primary and secondary candidates and returns
// the first pair for which a format pair exists. It does not touch devices.
func (c *Catalog) FindDualCandidate(ctx context.Context, preferredPrimary string) (DualCandidate, error) {
	primaries, err := c.PrimaryCandidates(ctx)
	if err != nil {
		return DualCandidate{}, err
	}
	if preferredPrimary != "" {
		idx := slices.IndexFunc(primaries, func(d Device) bool { return d.ID == preferredPrimary })
		if idx > 0 {
			preferred := primaries[idx]
			primaries = append([]Device{preferred}, slices.Delete(slices.Clone(primaries), idx, idx+1)...)
		}
	}

	var lastErr error
	for _, primary := range primaries {
		secondaries, secErr := c.SecondaryCandidates(ctx, primary.ID)
		if secErr != nil {
			lastErr = secErr
			continue
		}
		for _, secondary := range secondaries {
			pair, pairErr := c.SelectFormatPair(primary, secondary)
			if pairErr != nil {
				c.logger.Debug("Device pair rejected",
					"primary", primary.ID, "secondary", secondary.ID, "error", pairErr)
				lastErr = pairErr
				continue
			}
			return DualCandidate{Primary: primary, Secondary: secondary, Pair: pair}, nil
		}
	}
	if lastErr == nil {
		return DualCandidate{}, ErrNoPair
	}
	return DualCandidate{}, fmt.Errorf("%w: %w", ErrNoPair, lastErr)
}

// BestSingleFormat returns the richest format of a device for single-device
// operation. Multi-stream capability is not required.
func BestSingleFormat(d Device) (Format, bool) {
	if len(d.Formats) == 0 {
		return Format{}, false
	}
	return slices.MaxFunc(d.Formats, compareFormats), true
}
