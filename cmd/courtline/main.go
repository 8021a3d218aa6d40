package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"courtline/internal/app"
	"courtline/internal/apperr"
	"courtline/internal/config"
	"courtline/internal/db"
	"courtline/internal/engine"
	"courtline/internal/logging"
	"courtline/internal/migrate"
	"courtline/internal/repo"
	"courtline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "courtline",
	Short: "Courtline CLI",
	Long: `Courtline runs courtroom mystery cases from an append-only event log.
Core concepts:
- Workspace: a directory holding courtline.db (the case catalog), courtline.yml and one folder per case.
- Case: a mystery of length 1, 2 or 3 days. Its state is rebuilt from its event log on every command.
- Gates: investigation checkpoints completed in order; finishing enough of them opens the trial.
- Cross-examination: press or present evidence against testimony. Wrong presentations cost a penalty and five of them end the session.
- Classification: every character gets a hidden role such as killer or red herring. Game masters see it, players do not.
- Saves: named snapshots of a case log that can be restored later.
- Event log: view with 'courtline log tail' and check with 'courtline verify'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

// errOutcomeFailed marks a command whose outcome was already printed but
// did not succeed (a penalty, for instance).
var errOutcomeFailed = errors.New("command failed")

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if errors.Is(err, errOutcomeFailed) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("COURTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	logging.Init(logging.ParseLevel(viper.GetString("log-level")), "text", os.Stderr)
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	rootCmd.PersistentFlags().StringP("case", "c", "", "case id (defaults to the only case in the workspace)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	for _, name := range []string{"workspace", "json", "actor-id", "force", "case", "log-level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(caseCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(evidenceCmd())
	rootCmd.AddCommand(characterCmd())
	rootCmd.AddCommand(locationCmd())
	rootCmd.AddCommand(gateCmd())
	rootCmd.AddCommand(diceCmd())
	rootCmd.AddCommand(trialCmd())
	rootCmd.AddCommand(cxCmd())
	rootCmd.AddCommand(verdictCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(saveCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(memberCmd())
	rootCmd.AddCommand(keyCmd())
	rootCmd.AddCommand(serveCmd())
}

func caseCmd() *cobra.Command {
	c := &cobra.Command{Use: "case", Short: "Manage cases"}
	c.AddCommand(caseNewCmd())
	c.AddCommand(caseListCmd())
	c.AddCommand(caseShowCmd())
	c.AddCommand(caseDeleteCmd())
	return c
}

func caseNewCmd() *cobra.Command {
	var id, desc, location string
	var length int
	cmd := &cobra.Command{
		Use:   "new <title>",
		Short: "Open a new case",
		Long:  "Creates the case directory, its event log and the gate plan for the chosen length. The creating actor becomes the case's game master.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rec, err := e.CreateCase(ctx, engine.CaseCreateOptions{
					ID:          id,
					Title:       args[0],
					Description: desc,
					CaseLength:  length,
					Location:    location,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rec)
				}
				fmt.Printf("Case %s opened: %s (%d-day)\n", rec.ID, rec.Title, rec.CaseLength)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "case id (derived from the title when empty)")
	cmd.Flags().StringVar(&desc, "description", "", "case description")
	cmd.Flags().StringVar(&location, "location", "", "starting location")
	cmd.Flags().IntVar(&length, "length", 0, "case length in days (1, 2 or 3; config default when 0)")
	return cmd
}

func caseListCmd() *cobra.Command {
	var f repo.CaseFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListCases(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Title", "Length", "Status", "Created")
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Title, c.CaseLength, c.Status, c.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (created, active, closed)")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum number of cases")
	return cmd
}

func caseShowCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the case record or its projected state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				if full {
					st, err := e.State(ctx, caseID)
					if err != nil {
						return err
					}
					return printJSON(st)
				}
				rec, err := e.GetCase(ctx, caseID)
				if err != nil {
					return err
				}
				return printJSONOrTable(rec)
			})
		},
	}
	cmd.Flags().BoolVar(&full, "state", false, "print the full projected state")
	return cmd
}

func caseDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a case with its log and saves",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !viper.GetBool("force") {
				return fmt.Errorf("refusing to delete without --force")
			}
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				if err := e.DeleteCase(ctx, caseID); err != nil {
					return err
				}
				fmt.Printf("Case %s deleted\n", caseID)
				return nil
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show case status",
		Long:  "The scoreboard: phase, gate progress, trial phase, penalties and the actions currently allowed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				st, err := e.Status(ctx, caseID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				fmt.Printf("Case: %s - %s (%d-day, %s)\n", st.CaseID, st.Title, st.CaseLength, st.Status)
				fmt.Printf("Phase: %s  Location: %s\n", st.Phase, st.Location)
				fmt.Printf("Gates: %d%% (%d/%d completed)", st.Progress.Percent, len(st.Progress.Completed), st.Progress.TotalGates)
				if st.Progress.Next != "" {
					fmt.Printf(", next %s", st.Progress.Next)
				}
				fmt.Println()
				fmt.Printf("Evidence: %d  Characters: %d\n", st.Evidence, st.Characters)
				if st.Escalated {
					fmt.Printf("Crime escalated: %s\n", st.Crime)
				}
				if st.TrialPhase != "" {
					fmt.Printf("Trial: %s\n", st.TrialPhase)
				}
				if st.Session != nil {
					fmt.Printf("Cross-examining %s: penalties %d/%d (%s)\n", st.Session.Witness, st.Session.PenaltyCount, st.Session.MaxPenalties, st.Session.PenaltyBand)
				}
				fmt.Printf("Actions: %s\n", strings.Join(st.ValidActions, ", "))
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "courtline.yml holds the rules: case lengths and their gates, cross-examination limits, classification weights and save retention.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default courtline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !viper.GetBool("force") {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSON(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate courtline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.LoadConfig(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": errString(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of the case: every evidence, gate, testimony and objection is an event.",
	}
	log.AddCommand(logTailCmd())
	log.AddCommand(logShowCmd())
	log.AddCommand(logStateCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var kind string
	var all bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f := repo.EventFilters{Kind: kind, Limit: n}
				if !all {
					caseID, err := app.ResolveCase(ctx, viper.GetString("case"), e.Repo)
					if err != nil {
						return err
					}
					f.CaseID = caseID
				}
				items, err := e.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Seq", "Case", "Kind", "Time", "ID")
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.Seq, evt.CaseID, evt.Kind, evt.TS, evt.ID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&kind, "kind", "", "event kind filter")
	cmd.Flags().BoolVar(&all, "all", false, "include every case")
	return cmd
}

func logShowCmd() *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the case log in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				evts, err := e.CaseLog(ctx, caseID, since)
				if err != nil {
					return err
				}
				return printJSON(evts)
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only events after this event id")
	return cmd
}

func logStateCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Replay the log up to an event and print the state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				st, err := e.StateAt(ctx, caseID, at)
				if err != nil {
					return err
				}
				return printJSON(st)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "event id to stop at")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func verifyCmd() *cobra.Command {
	var all bool
	var parallel int
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay case logs and compare them with the catalog mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var reports []engine.ReplayReport
				if all {
					var err error
					if reports, err = e.VerifyAll(ctx, parallel); err != nil {
						return err
					}
				} else {
					caseID, err := app.ResolveCase(ctx, viper.GetString("case"), e.Repo)
					if err != nil {
						return err
					}
					rep, err := e.VerifyReplay(ctx, caseID)
					if err != nil {
						return err
					}
					reports = []engine.ReplayReport{rep}
				}
				failed := false
				for _, r := range reports {
					if !r.OK() {
						failed = true
					}
				}
				if viper.GetBool("json") {
					if err := printJSON(reports); err != nil {
						return err
					}
				} else {
					tw := newTable("Case", "Events", "Mirrored", "Replay", "Mirror", "Error")
					for _, r := range reports {
						tw.AppendRow(table.Row{r.CaseID, r.Events, r.Mirrored, okMark(r.Match), okMark(r.MirrorMatch), r.Error})
					}
					tw.Render()
				}
				if failed {
					return errOutcomeFailed
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "verify every case")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "cases verified concurrently with --all")
	return cmd
}

func memberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Case membership",
		Long:  "Members hold a role on one case: player (plays the case) or gm (sees hidden roles and writes testimony).",
	}
	cmd.AddCommand(memberListCmd())
	cmd.AddCommand(memberChangeCmd("add", "Grant a role", func(ctx context.Context, e engine.Engine, caseID, actor, role string) error {
		return e.AddMember(ctx, caseID, actor, role)
	}))
	cmd.AddCommand(memberChangeCmd("remove", "Revoke a role", func(ctx context.Context, e engine.Engine, caseID, actor, role string) error {
		return e.RemoveMember(ctx, caseID, actor, role)
	}))
	return cmd
}

func memberListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				items, err := e.Members(ctx, caseID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Actor", "Role", "Since")
				for _, m := range items {
					tw.AppendRow(table.Row{m.ActorID, m.Role, m.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func memberChangeCmd(use, short string, fn func(context.Context, engine.Engine, string, string, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <actor-id> <role>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				if err := fn(ctx, e, caseID, args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("%s %s: %s on %s\n", use, args[0], args[1], caseID)
				return nil
			})
		},
	}
}

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "API keys for the HTTP server",
	}
	cmd.AddCommand(keyCreateCmd())
	cmd.AddCommand(keyListCmd())
	cmd.AddCommand(keyRevokeCmd())
	return cmd
}

func keyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for --actor-id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, secret, err := e.CreateAPIKey(ctx, viper.GetString("actor-id"), name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "name": key.Name, "key": secret})
				}
				fmt.Printf("Key %s created for %s. Store it now, it is not shown again:\n%s\n", key.ID, key.ActorID, secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func keyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys of --actor-id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable("ID", "Name", "Created")
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func keyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RevokeAPIKey(ctx, viper.GetString("actor-id"), args[0]); err != nil {
					return err
				}
				fmt.Println("revoked", args[0])
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Long:  "Serves every case in the workspace over HTTP. Reads COURTLINE_JWT_SECRET, COURTLINE_ADDR, COURTLINE_BASE_PATH, COURTLINE_ALLOW_PLAYER_HEADER, COURTLINE_LOG_LEVEL and COURTLINE_LOG_FORMAT.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadServerEnv()
			if err != nil {
				return err
			}
			logging.Init(logging.ParseLevel(env.LogLevel), env.LogFormat, os.Stderr)
			if addr == "" {
				addr = env.Addr
			}
			if basePath == "" {
				basePath = env.BasePath
			}
			if env.JWTSecret == "" && !env.AllowPlayerHeader {
				return fmt.Errorf("COURTLINE_JWT_SECRET is required for bearer auth")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				authCfg := server.AuthConfig{
					JWTSecret:         env.JWTSecret,
					AllowPlayerHeader: env.AllowPlayerHeader,
					Logger:            logging.StdLogger(logging.New("auth"), slog.LevelWarn),
				}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				server.StartWebhooks(ctx, e)
				srv := &http.Server{
					Addr:              addr,
					Handler:           handler,
					ReadHeaderTimeout: 10 * time.Second,
					ErrorLog:          logging.StdLogger(logging.New("http"), slog.LevelError),
				}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Courtline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default COURTLINE_ADDR)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default COURTLINE_BASE_PATH)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		return err
	}
	cfg, err := app.LoadConfig(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg, workspace)
	return fn(ctx, e)
}

// withCase resolves --case (or the workspace's only case) before running fn.
func withCase(ctx context.Context, fn func(context.Context, engine.Engine, string) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		caseID, err := app.ResolveCase(ctx, viper.GetString("case"), e.Repo)
		if err != nil {
			return err
		}
		return fn(ctx, e, caseID)
	})
}

// printOutcome reports a command result. Already-done errors are shown as
// benign outcomes; other failures exit non-zero.
func printOutcome(out engine.Outcome, err error) error {
	if err != nil {
		if ae, ok := apperr.As(err); !ok || ae.Kind != apperr.KindAlreadyDone {
			return err
		}
		out = engine.OutcomeOf(err)
	}
	if viper.GetBool("json") {
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		mark := "✓"
		if !out.OK {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %s", mark, out.Message)
		if out.Signal != "" {
			line += fmt.Sprintf(" [%s]", strings.ToUpper(strings.ReplaceAll(out.Signal, "_", " ")))
		}
		fmt.Println(line)
	}
	if !out.OK {
		return errOutcomeFailed
	}
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row(header))
	return tw
}

func okMark(ok bool) string {
	if ok {
		return "ok"
	}
	return "MISMATCH"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
