package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fpgaroute/internal/rrgraph"
)

var deviceOut string

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Write the configured device as YAML",
	Long: `Build the configured device and write its routing-resource graph in the
YAML format accepted by device.file.

Examples:
  fpgaroute device --out device.yaml
  FPGAROUTE_DEVICE_WIDTH=40 fpgaroute device --out wide.yaml`,
	Args: cobra.NoArgs,
	RunE: runDevice,
}

func init() {
	deviceCmd.Flags().StringVarP(&deviceOut, "out", "o", "device.yaml", "output file")
	rootCmd.AddCommand(deviceCmd)
}

func runDevice(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	g, err := buildDevice(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if err := rrgraph.WriteYAMLFile(deviceOut, g); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes, %d edges, fingerprint %s\n",
		deviceOut, g.NumNodes(), g.NumEdges(), g.Fingerprint())
	return nil
}
