package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/surveypro/internal/auth"
	"github.com/DukeRupert/surveypro/internal/catalog"
	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/storage"
)

// maxCatalogBytes bounds a published catalog document.
const maxCatalogBytes = 5 << 20

// rootFlags are shared by every subcommand.
type rootFlags struct {
	origin string
	json   bool
}

func newRootCmd(factory appFactory, out io.Writer) *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:           "surveyctl",
		Short:         "Inspect and adjust survey server state",
		Version:       version,
		SilenceUsage:  true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&flags.origin, "origin", "", "Storage origin (the value of the surveypro_origin cookie)")
	root.PersistentFlags().BoolVar(&flags.json, "json", false, "Print JSON instead of text")

	root.AddCommand(
		newUserCmd(factory, &flags),
		newCompletionsCmd(factory, &flags),
		newCatalogCmd(factory, &flags),
	)
	return root
}

// requireOrigin validates the --origin flag.
func requireOrigin(flags *rootFlags) error {
	if flags.origin == "" {
		return fmt.Errorf("--origin is required")
	}
	if !auth.ValidOrigin(flags.origin) {
		return fmt.Errorf("--origin %q is not a valid origin id", flags.origin)
	}
	return nil
}

// =============================================================================
// user
// =============================================================================

func newUserCmd(factory appFactory, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Show or change the profile stored under an origin",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the profile and today's quota usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireOrigin(flags); err != nil {
				return err
			}
			return withApp(cmd, factory, func(ctx context.Context, a *app) error {
				user, err := a.profiles.GetUser(ctx, flags.origin)
				if err != nil {
					return err
				}
				usage, err := a.quota.GetUsage(ctx, flags.origin)
				if err != nil {
					return err
				}
				if flags.json {
					return printJSON(cmd.OutOrStdout(), map[string]any{"user": user, "usage": usage})
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "ID\t%s\n", user.ID)
				fmt.Fprintf(tw, "Name\t%s\n", user.DisplayName())
				fmt.Fprintf(tw, "Tier\t%s\n", user.Tier)
				fmt.Fprintf(tw, "Plan\t%s\n", user.Plan)
				fmt.Fprintf(tw, "Balance\t%.2f\n", user.Balance)
				fmt.Fprintf(tw, "Today\t%d of %d used, %d left\n", usage.Used, usage.Limit, usage.Remaining)
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set-tier <tier>",
		Short:     "Switch the user to another package",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"free", "silver", "gold", "platinum"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireOrigin(flags); err != nil {
				return err
			}
			return withApp(cmd, factory, func(ctx context.Context, a *app) error {
				user, err := a.browse.Upgrade(ctx, flags.origin, args[0])
				if err != nil {
					return fmt.Errorf("%s", domain.ErrorMessage(err))
				}
				if flags.json {
					return printJSON(cmd.OutOrStdout(), user)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now on the %s package\n", user.ID, domain.TierTitle(user.Tier))
				return nil
			})
		},
	})

	return cmd
}

// =============================================================================
// completions
// =============================================================================

func newCompletionsCmd(factory appFactory, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completions",
		Short: "Manage recorded survey completions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the user's completed surveys (today's quota is kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireOrigin(flags); err != nil {
				return err
			}
			return withApp(cmd, factory, func(ctx context.Context, a *app) error {
				if err := a.browse.Reset(ctx, flags.origin); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "completions reset")
				return nil
			})
		},
	})

	return cmd
}

// =============================================================================
// catalog
// =============================================================================

func newCatalogCmd(factory appFactory, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or publish the survey catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the catalog, annotated for --origin when given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.origin != "" {
				if err := requireOrigin(flags); err != nil {
					return err
				}
			}
			return withApp(cmd, factory, func(ctx context.Context, a *app) error {
				var views []domain.SurveyView
				if flags.origin != "" {
					list, err := a.surveys.ListSurveysForUser(ctx, flags.origin)
					if err != nil {
						return err
					}
					views = list
				} else {
					c, err := a.loader.Load(ctx)
					if err != nil {
						return err
					}
					views = catalog.NormalizeAll(c.Surveys, nil)
				}

				if flags.json {
					return printJSON(cmd.OutOrStdout(), views)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tQUESTIONS\tREWARD\tPREMIUM\tSTATUS")
				for _, v := range views {
					reward := "-"
					if v.Reward != nil {
						reward = fmt.Sprintf("%g %s", *v.Reward, v.Currency)
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%t\t%s\n", v.ID, v.Title, v.QuestionsCount, reward, v.Premium, v.Status)
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "publish <file>",
		Short: "Validate a catalog file and upload it to catalog storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			c, err := parseCatalog(data)
			if err != nil {
				return err
			}
			return withApp(cmd, factory, func(ctx context.Context, a *app) error {
				if a.catalogStore == nil {
					return errNoCatalogStorage
				}
				err := a.catalogStore.Put(ctx, a.catalogKey, bytes.NewReader(data), storage.PutOptions{
					ContentType: "application/json",
					MaxSize:     maxCatalogBytes,
					Overwrite:   true,
				})
				if err != nil {
					return fmt.Errorf("upload catalog: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %d surveys to %s\n", len(c.Surveys), a.catalogKey)
				return nil
			})
		},
	})

	return cmd
}

// parseCatalog checks that data is a catalog document with unique ids.
func parseCatalog(data []byte) (*domain.Catalog, error) {
	var c domain.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog is not valid JSON: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Surveys))
	for i, e := range c.Surveys {
		if e.ID == "" {
			return nil, fmt.Errorf("survey #%d has no id", i+1)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("survey id %q appears more than once", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return &c, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
