// Command ticketctl inspects a running ticket pipeline and runs the
// classifier locally.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ticketctl",
		Short:         "Operate the support ticket pipeline",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	viper.SetEnvPrefix("TICKETCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "ticket pipeline base URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token sent with API requests")
	rootCmd.PersistentFlags().Bool("json", false, "print raw JSON instead of tables")
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	rootCmd.AddCommand(analyticsCmd(), ticketsCmd(), mailCmd(), classifyCmd(), tokenCmd())
	return rootCmd
}
