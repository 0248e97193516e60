package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/usagestats/usagestats/config"
	"github.com/usagestats/usagestats/geo"
	"github.com/usagestats/usagestats/github"
	"github.com/usagestats/usagestats/httpclient"
	"github.com/usagestats/usagestats/report"
	"github.com/usagestats/usagestats/results"
	"github.com/usagestats/usagestats/stats"
	"github.com/usagestats/usagestats/usagelog"
	"github.com/usagestats/usagestats/util"
)

type generateOptions struct {
	logType string
	cached  bool
	nohits  bool
}

func createGenerateCommand() *cobra.Command {
	opts := generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <week|month|geo>",
		Short: "Report usage statistics per interval and write the result files",
		Long: "Aggregates the update logs over week or month intervals since the first log day " +
			"and writes results/results-<log type>-<interval>.{csv,json}. The geo interval resolves " +
			"every address instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := stats.ParseInterval(args[0])
			if err != nil {
				return err
			}
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			logTypes, err := parseLogTypes(opts.logType)
			if err != nil {
				return err
			}
			for _, lt := range logTypes {
				if err := generate(cmd.Context(), a, lt, interval, opts, cmd.OutOrStdout()); err != nil {
					return fmt.Errorf("%s logs: %w", lt, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.logType, "log_type", "both", "logs to scan: both, minor, periodic")
	cmd.Flags().BoolVar(&opts.cached, "cached", false, "use cached logs instead of fetching new logs via rsync")
	cmd.Flags().BoolVar(&opts.nohits, "nohits", false, "do not print the hits as part of the results")
	return cmd
}

func parseLogTypes(s string) ([]usagelog.LogType, error) {
	if s == "both" {
		return []usagelog.LogType{usagelog.Minor, usagelog.Periodic}, nil
	}
	lt, err := usagelog.ParseLogType(s)
	if err != nil {
		return nil, err
	}
	return []usagelog.LogType{lt}, nil
}

func logDir(cfg *config.Config, lt usagelog.LogType) string {
	if lt == usagelog.Periodic {
		return cfg.Logs.PeriodicDir
	}
	return cfg.Logs.MinorDir
}

func syncLogs(ctx context.Context, a *app, cached bool, dirs ...string) error {
	syncer := usagelog.NewSyncer(a.cfg.Logs.SSHLogin, a.cfg.Logs.SSHPort, a.cfg.Logs.RemoteDir, a.cfg.Logs.Root, dirs, a.log)
	return syncer.Sync(ctx, cached)
}

func generate(ctx context.Context, a *app, lt usagelog.LogType, interval stats.Interval, opts generateOptions, w io.Writer) error {
	dir := logDir(a.cfg, lt)
	if err := syncLogs(ctx, a, opts.cached, dir); err != nil {
		return err
	}

	logs, err := usagelog.Read(dir, lt)
	if err != nil {
		return err
	}
	a.log.Info("parsed logs", map[string]interface{}{"log_type": string(lt), "days": len(logs.Days), "uniques": len(logs.Uniques)})

	if interval == stats.Geo {
		return generateGeo(ctx, a, logs, w)
	}

	store := results.NewStore(a.cfg.Results.Dir)
	if lt == usagelog.Periodic {
		if err := saveDeployments(store, logs, w); err != nil {
			return err
		}
	}

	buckets, err := stats.Buckets(logs.Days, interval)
	if err != nil {
		return err
	}
	table := stats.BuildTable(buckets)

	fmt.Fprint(w, util.Banner(fmt.Sprintf("%s usage per %s", lt, interval)))
	report.PrintUsageTable(w, table, opts.nohits)
	report.PrintTotals(w, table, opts.nohits)
	hits := logs.HitsPerIP()
	report.PrintIPCounts(w, stats.IPCounts(hits))
	report.PrintDistribution(w, stats.HitsDistribution(hits))

	rows := make([][]interface{}, len(table.Rows))
	for i, row := range table.Rows {
		rows[i] = row.Values()[:len(results.TableHeaders)]
	}
	return store.Save(results.TableName(string(lt), string(interval)), results.TableHeaders, rows)
}

func saveDeployments(store *results.Store, logs *usagelog.Logs, w io.Writer) error {
	byServers, byTables := stats.LargestDeployments(logs.Uniques, stats.DefaultDeployments)
	report.PrintDeployments(w, "Most servers", byServers)
	report.PrintDeployments(w, "Most tables", byTables)

	if err := store.Save(results.MostServers, results.DeploymentHeaders, deploymentRows(byServers)); err != nil {
		return err
	}
	return store.Save(results.MostTables, results.DeploymentHeaders, deploymentRows(byTables))
}

func deploymentRows(infos []usagelog.IPInfo) [][]interface{} {
	rows := make([][]interface{}, len(infos))
	for i, info := range infos {
		rows[i] = []interface{}{info.IP, info.NumServers, info.NumTables, info.LastSeen, info.FirstSeen, info.Hits}
	}
	return rows
}

func generateGeo(ctx context.Context, a *app, logs *usagelog.Logs, w io.Writer) error {
	fmt.Fprintln(w, "Starting reverse ip lookup. This will take some time...")

	var cache geo.Cache
	if a.cfg.Redis.Address != "" {
		client, err := geo.NewRedisClient(ctx, a.cfg.Redis.Address, a.cfg.Redis.Password, a.cfg.Redis.DB)
		if err != nil {
			a.log.WithError(err).Warn("geo cache unavailable, resolving without it", nil)
		} else {
			defer client.Close()
			cache = geo.NewRedisCache(client, time.Duration(a.cfg.Redis.TTL)*time.Second)
		}
	}

	ips := make([]string, 0, len(logs.Uniques))
	for ip := range logs.Uniques {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	resolver := geo.NewResolver(a.cfg.Geo.Workers, cache, a.log.WithFields(map[string]interface{}{"component": "geo"}))
	hosts := resolver.ResolveAll(ctx, ips)
	geo.PrintRows(w, geo.Rows(logs.Uniques, hosts), time.Now())
	return nil
}

func createStarsCommand() *cobra.Command {
	var cached bool
	var username, password string
	cmd := &cobra.Command{
		Use:   "stars",
		Short: "Count GitHub stars per month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if username != "" {
				a.cfg.GitHub.Username = username
			}
			if password != "" {
				a.cfg.GitHub.Password = password
			}
			return generateStars(cmd.Context(), a, cached, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "use results-all-stars.json instead of the GitHub API")
	cmd.Flags().StringVar(&username, "username", "", "GitHub username (default: github.username)")
	cmd.Flags().StringVar(&password, "password", "", "GitHub password or token (default: github.password)")
	return cmd
}

func githubAuth(a *app, client *httpclient.Client) (github.Authenticator, error) {
	gh := a.cfg.GitHub
	switch {
	case gh.AppID != "" && gh.InstallationID != "" && gh.PrivateKeyPath != "":
		key, err := github.LoadPrivateKey(gh.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		return github.NewAppAuth(gh.AppID, gh.InstallationID, gh.APIURL, key, client), nil
	case gh.Username != "":
		return github.BasicAuth{Username: gh.Username, Password: gh.Password}, nil
	}
	return github.NoAuth{}, nil
}

func generateStars(ctx context.Context, a *app, cached bool, w io.Writer) error {
	store := results.NewStore(a.cfg.Results.Dir)

	var stars []github.Star
	if cached {
		if err := store.ReadJSON(results.AllStars, &stars); err != nil {
			return err
		}
	} else {
		gh := a.cfg.GitHub
		if gh.Owner == "" || gh.Repo == "" {
			return fmt.Errorf("github.owner and github.repo are required")
		}
		client := httpclient.New(config.GetDuration(a.cfg.Loader.Timeout), httpclient.DefaultUserAgent, nil).
			WithLogger(a.log.WithFields(map[string]interface{}{"component": "github"}))
		auth, err := githubAuth(a, client)
		if err != nil {
			return err
		}
		stars, err = github.NewClient(client, auth, gh.APIURL, a.log).Stargazers(ctx, gh.Owner, gh.Repo)
		if err != nil {
			return err
		}

		rows := make([][]interface{}, len(stars))
		for i, s := range stars {
			rows[i] = []interface{}{s.User, s.StarredAt}
		}
		if err := store.Save(results.AllStars, results.StarHeaders, rows); err != nil {
			return err
		}
	}

	counts, err := github.PerMonth(stars)
	if err != nil {
		return err
	}
	report.PrintStars(w, len(stars), counts)

	rows := make([][]interface{}, len(counts))
	for i, c := range counts {
		rows[i] = []interface{}{c.Period, c.Count}
	}
	return store.Save(results.GitHubStars, results.PeriodHeaders, rows)
}

func createActivityCommand() *cobra.Command {
	var cached bool
	var logType string
	cmd := &cobra.Command{
		Use:   "activity <days>",
		Short: "Report hits, uniques and actives per window of days, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			span, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("interval must be a number of days: %w", err)
			}
			lt, err := usagelog.ParseLogType(logType)
			if err != nil {
				return err
			}
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			dir := logDir(a.cfg, lt)
			if err := syncLogs(cmd.Context(), a, cached, dir); err != nil {
				return err
			}
			logs, err := usagelog.Read(dir, lt)
			if err != nil {
				return err
			}
			windows, err := stats.Windows(logs.Days, span, time.Now())
			if err != nil {
				return err
			}
			report.PrintWindows(cmd.OutOrStdout(), windows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "use cached logs instead of fetching new logs via rsync")
	cmd.Flags().StringVar(&logType, "log_type", "minor", "logs to scan: minor, periodic")
	return cmd
}
