package internal

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goplus/xarch/pkgs/buildsys"
	"github.com/goplus/xarch/pkgs/toolchain"
)

var sdkCmd = &cobra.Command{
	Use:   "sdk",
	Short: "Show the iOS SDKs builds use",
	Long:  `Sdk prints the device and simulator SDK roots reported by xcrun and their versions.`,
	Args:  cobra.NoArgs,
	RunE:  runSDK,
}

func init() {
	rootCmd.AddCommand(sdkCmd)
}

func runSDK(cmd *cobra.Command, args []string) error {
	cfg, l, err := setup(false)
	if err != nil {
		return err
	}
	return printSDKs(cmd, toolchain.NewXcrun(cfg.DeveloperDir), func(v buildsys.Variant, err error) {
		l.Warn("sdk unavailable", "variant", v, "error", err)
	})
}

// printSDKs writes one line per variant. Variants whose SDK cannot be
// located are reported through warn and skipped.
func printSDKs(cmd *cobra.Command, sdks buildsys.SDKLocator, warn func(buildsys.Variant, error)) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tSDK\tVERSION\tROOT")
	found := 0
	for _, v := range []buildsys.Variant{buildsys.Device, buildsys.Simulator} {
		root, err := sdks.SDKRoot(v)
		if err != nil {
			warn(v, err)
			continue
		}
		version := "unknown"
		if s, err := toolchain.ReadSDKSettings(root); err == nil && s.Version != "" {
			version = s.Version
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v, v.SDKName(), version, root)
		found++
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if found == 0 {
		return fmt.Errorf("no iOS SDK found")
	}
	return nil
}
