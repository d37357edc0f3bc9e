package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/dualcam/internal/catalog"
	"github.com/smazurov/dualcam/internal/logging"
	"github.com/smazurov/dualcam/internal/platform/sim"
)

// DevicesReport is the output of the devices command.
type DevicesReport struct {
	MultiCam bool                `json:"multi_cam"`
	Devices  []catalog.Device    `json:"devices"`
	Pair     *catalog.FormatPair `json:"pair,omitempty"`
	Primary  string              `json:"primary,omitempty"`
	Second   string              `json:"secondary,omitempty"`
	Reason   string              `json:"reason,omitempty"`
}

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var devicesFile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices and the dual-device pair",
		Long: `Enumerates the capture devices of the platform, ranks them for the primary role ` +
			`and shows which pair and formats dual-device capture would negotiate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			p, err := sim.NewFromManifest(devicesFile)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			report, err := BuildDevicesReport(ctx, catalog.New(p, logging.GetLogger("catalog")), p.MultiCamSupported())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return report.WriteText(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&devicesFile, "devices-file", "d", "", "Simulated device manifest (TOML), defaults to the built-in set")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

// BuildDevicesReport ranks devices and resolves the dual-device pair.
func BuildDevicesReport(ctx context.Context, cat *catalog.Catalog, multiCam bool) (DevicesReport, error) {
	devices, err := cat.PrimaryCandidates(ctx)
	if err != nil {
		return DevicesReport{}, err
	}
	report := DevicesReport{MultiCam: multiCam, Devices: devices}
	if !multiCam {
		report.Reason = "platform does not support multi-cam sessions"
		return report, nil
	}
	cand, err := cat.FindDualCandidate(ctx, "")
	switch {
	case err == nil:
		report.Pair = &cand.Pair
		report.Primary = cand.Primary.ID
		report.Second = cand.Secondary.ID
	case errors.Is(err, catalog.ErrNoPair):
		report.Reason = err.Error()
	default:
		return DevicesReport{}, err
	}
	return report, nil
}

// WriteText prints the report as aligned tables.
func (r DevicesReport) WriteText(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tID\tNAME\tPOSITION\tKIND\tZOOM\tFORMATS")
	for i, d := range r.Devices {
		multi := len(d.MultiStreamFormats())
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%g-%gx\t%d (%d multi-stream)\n",
			i+1, d.ID, d.Name, d.Position, d.Kind, d.MinZoom, d.MaxZoom, len(d.Formats), multi)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	if r.Pair == nil {
		_, err := fmt.Fprintf(out, "Dual capture unavailable: %s\n", r.Reason)
		return err
	}
	tier := r.Pair.Tier
	if tier == "" {
		tier = "independent"
	}
	_, err := fmt.Fprintf(out, "Dual pair: %s %s + %s %s (tier %s)\n",
		r.Primary, r.Pair.Primary, r.Second, r.Pair.Secondary, tier)
	return err
}
