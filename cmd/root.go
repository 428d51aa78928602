// Package cmd wires the crawler's command-line interface: flag parsing,
// .env loading and viper configuration, following the same layering as the
// crawler's ancestor CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/webcrawler/cmd/crawl"
)

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "webcrawler",
		Short: "A breadth-first batch web crawler",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (none is read when unset)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(crawl.Command(viper.GetViper(), &cfgFile, &debug))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the crawler version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("webcrawler (development build)")
	},
}

// Execute loads .env, parses flags eagerly so persistent flags are visible
// to config loading, then runs the selected command.
func Execute() error {
	_ = godotenv.Load()
	_ = rootCmd.ParseFlags(os.Args[1:])

	return rootCmd.Execute()
}
