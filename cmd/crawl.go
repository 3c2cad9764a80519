package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/orchestrator"
)

type crawlFlags struct {
	place      string
	user       string
	store      string
	maxReviews int
	windows    []int
	since      string
}

// newCrawlCmd creates the 'crawl' subcommand, which runs a single crawl of
// one place and prints the result as JSON. Quota is not applied.
func newCrawlCmd() *cobra.Command {
	var f crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl --place <url|id> --user <id>",
		Short: "Crawls one place immediately",
		Long: `Resolves the place from a store URL, share link or bare id, collects its
reviews for the given user and prints the run result. The store checkpoint is
left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app Application, e *env) error {
				defer func() {
					if err := app.Close(context.WithoutCancel(ctx)); err != nil {
						e.logger.Warn("failed to close application", zap.Error(err))
					}
				}()
				req, err := f.request(ctx, app, e)
				if err != nil {
					return err
				}
				res := app.Crawl(ctx, req)
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			})
		},
	}
	cmd.Flags().StringVar(&f.place, "place", "", "store URL, share link or place id")
	cmd.Flags().StringVar(&f.user, "user", "", "tenant that owns the collected reviews")
	cmd.Flags().StringVar(&f.store, "store", "", "store id the reviews belong to")
	cmd.Flags().IntVar(&f.maxReviews, "max", 0, "maximum new reviews (0 means unbounded)")
	cmd.Flags().IntSliceVar(&f.windows, "windows", nil, "day windows to try, ending with 0 (default quota.free_windows)")
	cmd.Flags().StringVar(&f.since, "since", "", "only keep reviews after this RFC 3339 time")
	_ = cmd.MarkFlagRequired("place")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (f crawlFlags) request(ctx context.Context, app Application, e *env) (orchestrator.Request, error) {
	placeID, err := app.ResolvePlace(ctx, f.place)
	if err != nil {
		return orchestrator.Request{}, fmt.Errorf("resolve place %q: %w", f.place, err)
	}
	req := orchestrator.Request{
		PlaceID:    placeID,
		UserID:     f.user,
		MaxReviews: f.maxReviews,
		DayWindows: f.windows,
	}
	if len(req.DayWindows) == 0 {
		req.DayWindows = e.cfg.Quota.FreeWindows
	}
	if req.DayWindows[len(req.DayWindows)-1] != 0 {
		return orchestrator.Request{}, errors.New("--windows must end with 0")
	}
	if f.store != "" {
		store := f.store
		req.StoreID = &store
	}
	if f.since != "" {
		since, err := time.Parse(time.RFC3339, f.since)
		if err != nil {
			return orchestrator.Request{}, fmt.Errorf("parse --since: %w", err)
		}
		req.Since = &since
	}
	return req, nil
}
