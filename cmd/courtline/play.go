package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/events"
)

func evidenceCmd() *cobra.Command {
	ev := &cobra.Command{Use: "evidence", Short: "Collect and review evidence"}
	ev.AddCommand(evidenceAddCmd())
	ev.AddCommand(evidenceListCmd())
	ev.AddCommand(evidenceAssessCmd())
	return ev
}

func evidenceAddCmd() *cobra.Command {
	var desc, location string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Record a piece of evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.AddEvidence(ctx, caseID, args[0], desc, location))
			})
		},
	}
	cmd.Flags().StringVar(&desc, "description", "", "what the evidence shows")
	cmd.Flags().StringVar(&location, "location", "", "where it was found (current location when empty)")
	return cmd
}

func evidenceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List evidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				items, err := e.ListEvidence(ctx, caseID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Significance", "Location", "Collected")
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.ID, ev.Name, ev.Significance, ev.Location, ev.CollectedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func evidenceAssessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assess",
		Short: "Grade evidence readiness for trial",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				r, err := e.AssessEvidence(ctx, caseID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(r)
				}
				fmt.Printf("Ready: %t (%d pieces: %d high, %d medium, %d low)\n", r.Ready, r.Total, r.High, r.Medium, r.Low)
				for _, rec := range r.Recommendations {
					fmt.Println("  -", rec)
				}
				return nil
			})
		},
	}
}

func characterCmd() *cobra.Command {
	ch := &cobra.Command{Use: "character", Short: "Characters met during the case"}
	ch.AddCommand(characterMeetCmd())
	ch.AddCommand(characterListCmd())
	ch.AddCommand(characterTrustCmd())
	ch.AddCommand(characterInterviewCmd())
	return ch
}

func characterMeetCmd() *cobra.Command {
	var in engine.CharacterInput
	cmd := &cobra.Command{
		Use:   "meet <name>",
		Short: "Introduce a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.MeetCharacter(ctx, caseID, in))
			})
		},
	}
	cmd.Flags().StringVar(&in.Role, "role", "witness", "public role (witness, prosecutor, judge, client, ...)")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().IntVar(&in.TrustLevel, "trust", 0, "initial trust (-10..10)")
	return cmd
}

func characterListCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List characters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				items, err := e.Characters(ctx, caseID, reveal)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				header := []any{"Name", "Role", "Trust", "Interview"}
				if reveal {
					header = append(header, "Hidden role")
				}
				tw := newTable(header...)
				for _, c := range items {
					row := table.Row{c.Name, c.Role, c.TrustLevel, c.InterviewStatus}
					if reveal {
						row = append(row, c.Classification)
					}
					tw.AppendRow(row)
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "include hidden roles")
	return cmd
}

func characterTrustCmd() *cobra.Command {
	var delta int
	cmd := &cobra.Command{
		Use:   "trust <name>",
		Short: "Shift a character's trust",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.UpdateTrust(ctx, caseID, args[0], delta))
			})
		},
	}
	cmd.Flags().IntVar(&delta, "delta", 1, "trust change, clamped to -10..10")
	return cmd
}

func characterInterviewCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "interview <name>",
		Short: "Update a character's interview status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.Interview(ctx, caseID, args[0], status))
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", domain.InterviewStarted, "interviewed, exhausted or uncooperative")
	return cmd
}

func locationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "location <place>",
		Short: "Move the investigation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.ChangeLocation(ctx, caseID, args[0]))
			})
		},
	}
}

func gateCmd() *cobra.Command {
	g := &cobra.Command{
		Use:   "gate",
		Short: "Investigation gates",
		Long:  "Gates are completed in plan order. Completing the trigger gate opens the trial.",
	}
	g.AddCommand(gateProgressCmd())
	g.AddCommand(gateNextCmd())
	g.AddCommand(gateActionCmd("start", "Start a gate", engine.Engine.StartGate))
	g.AddCommand(gateActionCmd("complete", "Complete a gate", engine.Engine.CompleteGate))
	return g
}

func gateProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show gate progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				p, err := e.Progress(ctx, caseID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("Progress: %d%% of %d gates (trial at %d)\n", p.Percent, p.TotalGates, p.TriggerAt)
				fmt.Printf("Completed: %s\n", joinOrNone(p.Completed))
				fmt.Printf("In progress: %s\n", joinOrNone(p.InProgress))
				fmt.Printf("Pending: %s\n", joinOrNone(p.Pending))
				fmt.Printf("Trial ready: %t\n", p.TrialReady)
				return nil
			})
		},
	}
}

func gateNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the next gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				g, ok, err := e.NextGate(ctx, caseID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"gate": g, "done": !ok})
				}
				if !ok {
					fmt.Println("All gates completed")
					return nil
				}
				return printJSONOrTable(g)
			})
		},
	}
}

func gateActionCmd(use, short string, fn func(engine.Engine, context.Context, string, string) (engine.Outcome, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <gate>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(fn(e, ctx, caseID, args[0]))
			})
		},
	}
}

func diceCmd() *cobra.Command {
	d := &cobra.Command{Use: "dice", Short: "Investigation dice checks"}
	d.AddCommand(diceRollCmd())
	d.AddCommand(diceHistoryCmd())
	return d
}

func diceRollCmd() *cobra.Command {
	var modifiers []string
	cmd := &cobra.Command{
		Use:   "roll <action>",
		Short: "Roll a d20 check for an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.RollDice(ctx, caseID, args[0], modifiers))
			})
		},
	}
	cmd.Flags().StringSliceVar(&modifiers, "modifier", nil, "named modifier (repeatable)")
	return cmd
}

func diceHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show past rolls",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				rolls, sum, err := e.DiceHistory(ctx, caseID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"rolls": rolls, "stats": sum})
				}
				tw := newTable("Action", "Roll", "Total", "DC", "Result")
				for _, r := range rolls {
					tw.AppendRow(table.Row{r.Action, r.Roll, r.Total, r.Difficulty, r.Result})
				}
				tw.AppendFooter(table.Row{"", fmt.Sprintf("avg %.1f", sum.AverageRoll), "", "", fmt.Sprintf("%.0f%% success", sum.SuccessRate*100)})
				tw.Render()
				return nil
			})
		},
	}
}

func trialCmd() *cobra.Command {
	t := &cobra.Command{Use: "trial", Short: "Courtroom phase"}
	t.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Open the trial",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.StartTrial(ctx, caseID))
			})
		},
	})
	t.AddCommand(trialTestimonyCmd())
	t.AddCommand(&cobra.Command{
		Use:   "witness <name>",
		Short: "Call a witness to the stand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.CallWitness(ctx, caseID, args[0]))
			})
		},
	})
	return t
}

func trialTestimonyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "testimony <witness>",
		Short: "Record or show a witness's testimony",
		Long:  "With --file, records the statements listed in a YAML or JSON file (id, text, is_lie, critical, contradicting_evidence, combinations, press_response). Without it, prints the recorded testimony.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				if file == "" {
					stmts, err := e.Testimony(ctx, caseID, args[0])
					if err != nil {
						return err
					}
					return printJSON(stmts)
				}
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				specs, err := parseStatements(data)
				if err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				return printOutcome(e.RecordTestimony(ctx, caseID, args[0], specs))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "statements file (YAML or JSON)")
	return cmd
}

// parseStatements accepts a YAML list of statements or a mapping with a
// statements key. JSON input is valid YAML.
func parseStatements(data []byte) ([]events.StatementSpec, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse statements: %w", err)
	}
	if m, ok := raw.(map[string]any); ok {
		raw = m["statements"]
	}
	if _, ok := raw.([]any); !ok {
		return nil, fmt.Errorf("parse statements: expected a list of statements")
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse statements: %w", err)
	}
	var specs []events.StatementSpec
	if err := json.Unmarshal(buf, &specs); err != nil {
		return nil, fmt.Errorf("parse statements: %w", err)
	}
	return specs, nil
}

func cxCmd() *cobra.Command {
	cx := &cobra.Command{
		Use:   "cx",
		Short: "Cross-examination",
		Long:  "Press statements for more detail or present evidence against them. A presentation that does not contradict costs a penalty.",
	}
	cx.AddCommand(&cobra.Command{
		Use:   "start <witness>",
		Short: "Begin cross-examining a witness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.StartCrossExamination(ctx, caseID, args[0]))
			})
		},
	})
	cx.AddCommand(&cobra.Command{
		Use:   "press <statement>",
		Short: "Press a statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.Press(ctx, caseID, args[0]))
			})
		},
	})
	cx.AddCommand(&cobra.Command{
		Use:   "present <statement> <evidence>",
		Short: "Present one piece of evidence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.Present(ctx, caseID, args[0], args[1]))
			})
		},
	})
	cx.AddCommand(&cobra.Command{
		Use:   "combo <statement> <evidence> <evidence>...",
		Short: "Present a combination of evidence",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.PresentCombination(ctx, caseID, args[0], args[1:]))
			})
		},
	})
	cx.AddCommand(cxSessionCmd())
	cx.AddCommand(&cobra.Command{
		Use:   "victory",
		Short: "Check whether the testimony has collapsed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				v, err := e.CheckVictory(ctx, caseID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(v)
				}
				fmt.Printf("Victory: %t (%d/%d contradictions, critical exposed: %s)\n", v.Achieved, v.Successful, v.Required, joinOrNone(v.CriticalExposed))
				return nil
			})
		},
	})
	cx.AddCommand(&cobra.Command{
		Use:   "end",
		Short: "End the cross-examination",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.EndCrossExamination(ctx, caseID))
			})
		},
	})
	return cx
}

func cxSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the active cross-examination",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				s, err := e.Session(ctx, caseID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"active": s != nil, "session": s})
				}
				if s == nil {
					fmt.Println("No cross-examination in progress")
					return nil
				}
				fmt.Printf("Witness: %s  Penalties: %d/%d (%s)\n", s.Witness, s.PenaltyCount, s.MaxPenalties, s.PenaltyBand)
				tw := newTable("ID", "Statement", "Pressed", "Contradicted")
				for _, st := range s.Statements {
					tw.AppendRow(table.Row{st.ID, st.Text, st.Pressed, st.Contradicted})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func verdictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verdict <verdict>",
		Short: "Close the case with a verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.Verdict(ctx, caseID, args[0]))
			})
		},
	}
}

func classifyCmd() *cobra.Command {
	var hint string
	c := &cobra.Command{
		Use:   "classify [character]",
		Short: "Hidden role classification",
		Long:  "With a character name, returns its hidden role, assigning one on first use. Subcommands inspect or adjust the registry.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.Classify(ctx, caseID, args[0], hint))
			})
		},
	}
	c.Flags().StringVar(&hint, "role-hint", "", "narrative role used to weight the draw")
	c.AddCommand(classifyListCmd())
	c.AddCommand(&cobra.Command{
		Use:   "override <character> <role>",
		Short: "Force a hidden role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				if err := e.OverrideClassification(ctx, caseID, args[0], domain.Classification(args[1])); err != nil {
					return err
				}
				fmt.Printf("%s is now %s\n", args[0], args[1])
				return nil
			})
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Compare assigned roles with the expected distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				st, err := e.ClassifierStats(ctx, caseID)
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "probability <role-hint>",
		Short: "Killer probability for a role hint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				p, err := e.KillerProbability(ctx, caseID, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"role_hint": args[0], "killer_probability": p})
				}
				fmt.Printf("%s: %.1f%%\n", args[0], p*100)
				return nil
			})
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget every classification",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !viper.GetBool("force") {
				return fmt.Errorf("refusing to reset without --force")
			}
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				if err := e.ResetClassifications(ctx, caseID); err != nil {
					return err
				}
				fmt.Println("classifications cleared")
				return nil
			})
		},
	})
	return c
}

func classifyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				reg, err := e.Classifications(ctx, caseID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(reg)
				}
				names := make([]string, 0, len(reg))
				for name := range reg {
					names = append(names, name)
				}
				sort.Strings(names)
				tw := newTable("Character", "Role")
				for _, name := range names {
					tw.AppendRow(table.Row{name, reg[name]})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func saveCmd() *cobra.Command {
	s := &cobra.Command{Use: "save", Short: "Named snapshots of a case"}
	s.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Snapshot the case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.CreateSave(ctx, caseID, args[0]))
			})
		},
	})
	s.AddCommand(&cobra.Command{
		Use:   "restore <name>",
		Short: "Restore a snapshot (the current log is backed up first)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				return printOutcome(e.RestoreSave(ctx, caseID, args[0]))
			})
		},
	})
	s.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				metas, err := e.ListSaves(ctx, caseID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(metas)
				}
				tw := newTable("Name", "Created", "Phase", "Progress", "Events", "Auto")
				for _, m := range metas {
					tw.AppendRow(table.Row{m.Name, m.CreatedAt.Format("2006-01-02 15:04:05"), m.Phase, fmt.Sprintf("%d%%", m.Progress), m.EventCount, m.Auto})
				}
				tw.Render()
				return nil
			})
		},
	})
	s.AddCommand(saveCleanupCmd())
	s.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				if err := e.DeleteSave(ctx, caseID, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	})
	return s
}

func saveCleanupCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Keep only the newest saves",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cmd.Context(), func(ctx context.Context, e engine.Engine, caseID string) error {
				deleted, err := e.CleanupSaves(ctx, caseID, keep)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"deleted": deleted})
				}
				fmt.Printf("deleted %d save(s)\n", len(deleted))
				for _, name := range deleted {
					fmt.Println("  -", name)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", -1, "saves to keep (config default when negative)")
	return cmd
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
