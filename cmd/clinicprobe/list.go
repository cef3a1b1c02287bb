package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kuitang/clinicprobe/internal/config"
)

func newListCmd(d deps) *cobra.Command {
	var (
		file string
		tags []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the available scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(config.Flags{NoStore: true, NoS3: true, NoEmail: true})
			if err != nil {
				return err
			}
			cat, err := catalogFor(cfg, file)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(d.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTEPS\tTAGS\tDESCRIPTION")
			for _, sc := range cat.Filter(tags...) {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", sc.Name, len(sc.Steps), strings.Join(sc.Tags, ","), sc.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "list scenarios from a YAML file instead of the built-in catalog")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "only list scenarios carrying one of these tags")
	return cmd
}
