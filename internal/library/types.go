package library

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when an asset ID is not in the index.
var ErrNotFound = errors.New("asset not found")

// AssetKind classifies library assets.
type AssetKind string

// Asset kinds.
const (
	KindPhoto  AssetKind = "photo"
	KindClip   AssetKind = "clip"
	KindMerged AssetKind = "merged"
)

// ParseKind validates a kind name.
func ParseKind(s string) (AssetKind, error) {
	switch k := AssetKind(s); k {
	case KindPhoto, KindClip, KindMerged:
		return k, nil
	default:
		return "", fmt.Errorf("unknown asset kind %q", s)
	}
}

// Asset is one persisted media file.
type Asset struct {
	ID        string        `json:"id"`
	Kind      AssetKind     `json:"kind"`
	RelPath   string        `json:"rel_path"`
	SizeBytes int64         `json:"size_bytes"`
	Duration  time.Duration `json:"duration"`
	DeviceID  string        `json:"device_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// ImportOptions describes media handed to Import.
type ImportOptions struct {
	Kind     AssetKind
	Duration time.Duration
	DeviceID string
}
