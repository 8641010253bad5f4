package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goplus/xarch/pkgs/buildsys"
	"github.com/goplus/xarch/pkgs/buildsys/archenv"
	"github.com/goplus/xarch/pkgs/buildsys/autotools"
	"github.com/goplus/xarch/pkgs/toolchain"
)

var (
	envArch   string
	envTarget string
)

var envCmd = &cobra.Command{
	Use:   "env <formula>",
	Short: "Print the build environment of one architecture",
	Long: `Env prints the variables configure and make would run with for one
architecture, followed by the configure command line.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnv,
}

func init() {
	envCmd.Flags().StringVar(&envArch, "arch", "arm64", "Architecture")
	envCmd.Flags().StringVar(&envTarget, "target", string(buildsys.IOS), "Target platform")
	rootCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, args []string) error {
	cfg, l, err := setup(false)
	if err != nil {
		return err
	}
	pkg, err := loadPackage(cfg, args[0])
	if err != nil {
		return err
	}
	tc := toolchain.NewXcrun(cfg.DeveloperDir)
	env, err := archenv.New(l, tc, tc).Build(buildsys.Target(envTarget), envArch, pkg.HeadersDir(), pkg.ExtraLibsDir(envTarget, envArch))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, env.String())
	fmt.Fprintln(out)
	fmt.Fprintln(out, autotools.ConfigureCommand(autotools.ConfigureArgs(env, pkg.Options())))
	return nil
}
