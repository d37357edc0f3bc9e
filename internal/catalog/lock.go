package catalog

import (
	"context"
	"fmt"
)

// defaultFrameRate caps the active frame rate when a format allows more.
const defaultFrameRate = 30

// ApplyFormat locks the device, sets the active format and frame-rate bounds
// and releases the lock on every return path. The returned device carries the
// new active format.
func (c *Catalog) ApplyFormat(ctx context.Context, d Device, f Format) (Device, error) {
	if !d.HasFormat(f.ID) {
		return d, &FormatError{DeviceID: d.ID, Err: fmt.Errorf("format %s not offered", f)}
	}

	err := c.withLock(ctx, d.ID, func(lock DeviceLock) error {
		if err := lock.SetActiveFormat(f); err != nil {
			return fmt.Errorf("set active format %s: %w", f, err)
		}
		rate := min(float64(defaultFrameRate), f.MaxFrameRate())
		if rate > 0 {
			if err := lock.SetFrameRate(FrameRateRange{Min: rate, Max: rate}); err != nil {
				return fmt.Errorf("set frame rate %g: %w", rate, err)
			}
		}
		return nil
	})
	if err != nil {
		return d, err
	}

	d.Active = f
	c.logger.Debug("Applied format", "device", d.ID, "format", f.String())
	return d, nil
}

// SetZoom clamps factor to the device bounds and applies it under lock.
func (c *Catalog) SetZoom(ctx context.Context, d Device, factor float64) (float64, error) {
	lo, hi := d.MinZoom, d.MaxZoom
	if lo <= 0 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	factor = min(max(factor, lo), hi)

	err := c.withLock(ctx, d.ID, func(lock DeviceLock) error {
		return lock.SetZoom(factor)
	})
	if err != nil {
		return 0, err
	}
	return factor, nil
}

// withLock is the scoped acquisition used for every device mutation.
func (c *Catalog) withLock(ctx context.Context, deviceID string, fn func(DeviceLock) error) error {
	lock, err := c.provider.LockForConfiguration(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("lock device %s: %w", deviceID, err)
	}
	defer lock.Unlock()
	return fn(lock)
}
