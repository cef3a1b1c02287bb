package main

import (
	"github.com/spf13/cobra"

	"github.com/kuitang/clinicprobe/internal/clinic"
	"github.com/kuitang/clinicprobe/internal/config"
	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/obs"
	"github.com/kuitang/clinicprobe/internal/scenario"
)

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "clinicprobe",
		Short:         "End-to-end browser checks for the dental clinic web application",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(d), newListCmd(d), newHistoryCmd(d))
	return root
}

// loadConfig loads the configuration and applies its log level.
func loadConfig(flags config.Flags) (*config.Config, error) {
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err.Error(), err)
	}
	obs.Init()
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// catalogFor returns the scenarios in file, or the built-in clinic catalog
// when file is empty.
func catalogFor(cfg *config.Config, file string) (*clinic.Catalog, error) {
	if file == "" {
		return clinic.Default(clinic.Credentials{Email: cfg.AdminEmail, Password: cfg.AdminPassword}), nil
	}
	scs, err := scenario.LoadFile(file)
	if err != nil {
		return nil, err
	}
	return clinic.NewCatalog(scs)
}

// pick selects scenarios by name, then narrows them by tag.
func pick(cat *clinic.Catalog, names, tags []string) ([]scenario.Scenario, error) {
	scs := cat.Filter(tags...)
	if len(names) == 0 {
		return scs, nil
	}
	selected, err := cat.Select(names)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return selected, nil
	}
	var out []scenario.Scenario
	for _, sc := range selected {
		for _, tag := range tags {
			if sc.HasTag(tag) {
				out = append(out, sc)
				break
			}
		}
	}
	return out, nil
}
