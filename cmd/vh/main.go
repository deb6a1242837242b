package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"villagehub/internal/app"
	"villagehub/internal/config"
	"villagehub/internal/db"
	"villagehub/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "vh",
	Short: "Villagehub CLI",
	Long: `Villagehub books local service workers for village customers.
Core concepts:
- Workspace: the .villagehub directory holding the SQLite database; villagehub.yml and .env sit next to it.
- Parties: customers request work, workers accept and complete it, admins moderate.
- Bookings: requested -> accepted -> completed, or requested -> rejected. Only the assigned worker moves a booking; admins can force a status with a reason.
- Reviews: one per completed booking, written by its customer; the worker's rating is the mean of their reviews.
- Chat: every booking carries a message log between its customer and worker.
- Event log: every change is recorded, view with 'vh log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		// Values already in the environment win over .env.
		if err := godotenv.Load(filepath.Join(workspace, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("VILLAGEHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Int64("actor-id", 0, "acting party id")
	rootCmd.PersistentFlags().String("actor-role", "", "acting party role (customer, worker, admin)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("actor-role", rootCmd.PersistentFlags().Lookup("actor-role"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(customerCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(bookingCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace database, villagehub.yml and .env",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); err == nil && !force {
				fmt.Printf("Keeping existing %s\n", cfgPath)
			} else {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", cfgPath)
			}
			envPath := filepath.Join(workspace, ".env")
			env, err := godotenv.Read(envPath)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return err
				}
				env = map[string]string{}
			}
			if env["VILLAGEHUB_JWT_SECRET"] == "" || force {
				env["VILLAGEHUB_JWT_SECRET"] = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
				if err := godotenv.Write(env, envPath); err != nil {
					return err
				}
				fmt.Printf("Wrote JWT secret to %s\n", envPath)
			}
			a, err := app.Open(cmd.Context(), workspace, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Printf("Database ready at %s\n", db.Path(workspace))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite config and rotate the JWT secret")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, viper.GetString("workspace"), os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// currentActor resolves --actor-id/--actor-role (or VILLAGEHUB_ACTOR_ID and
// VILLAGEHUB_ACTOR_ROLE) and checks the party still exists.
func currentActor(ctx context.Context, a *app.App) (domain.Actor, error) {
	actor := domain.Actor{
		ID:   viper.GetInt64("actor-id"),
		Role: domain.Role(strings.ToLower(strings.TrimSpace(viper.GetString("actor-role")))),
	}
	if actor.ID <= 0 || !actor.Role.Valid() {
		return domain.Actor{}, errors.New("--actor-id and --actor-role are required")
	}
	ok, err := a.Auth.Exists(ctx, actor)
	if err != nil {
		return domain.Actor{}, err
	}
	if !ok {
		return domain.Actor{}, fmt.Errorf("%s %d does not exist", actor.Role, actor.ID)
	}
	return actor, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printJSONOrTable renders known list types as tables and falls back to JSON.
func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	switch items := v.(type) {
	case []domain.BookingSummary:
		tw.AppendHeader(table.Row{"ID", "Date", "Status", "Customer", "Worker", "Address", "Reviewed"})
		for _, b := range items {
			tw.AppendRow(table.Row{b.ID, b.ServiceDate, b.Status, deref(b.CustomerName), workerLabel(b), b.Address, b.Reviewed})
		}
	case []domain.Worker:
		tw.AppendHeader(table.Row{"ID", "Name", "Skill", "Price/h", "Availability", "Rating", "Phone"})
		for _, w := range items {
			tw.AppendRow(table.Row{w.ID, w.Name, w.Skill, fmt.Sprintf("%.2f", w.PricePerHour), w.Availability, fmt.Sprintf("%.1f", w.Rating), w.Phone})
		}
	case []domain.Customer:
		tw.AppendHeader(table.Row{"ID", "Name", "Email", "Phone", "Created"})
		for _, c := range items {
			tw.AppendRow(table.Row{c.ID, c.Name, c.Email, c.Phone, c.CreatedAt})
		}
	case []domain.Message:
		tw.AppendHeader(table.Row{"ID", "Time", "From", "Message"})
		for _, m := range items {
			tw.AppendRow(table.Row{m.ID, m.Timestamp, fmt.Sprintf("%s %d", m.SenderRole, m.SenderID), m.Text})
		}
	case []domain.Review:
		tw.AppendHeader(table.Row{"ID", "Booking", "Rating", "Review", "Created"})
		for _, r := range items {
			tw.AppendRow(table.Row{r.ID, r.BookingID, r.Rating, r.Text, r.CreatedAt})
		}
	case []domain.Event:
		tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor", "Payload"})
		for _, e := range items {
			tw.AppendRow(table.Row{e.ID, e.TS, e.Type, fmt.Sprintf("%s %d", e.EntityKind, e.EntityID), fmt.Sprintf("%s %d", e.ActorRole, e.ActorID), e.Payload})
		}
	default:
		return printJSON(v)
	}
	tw.Render()
	return nil
}

func workerLabel(b domain.BookingSummary) string {
	name := deref(b.WorkerName)
	if skill := deref(b.WorkerSkill); skill != "" {
		return fmt.Sprintf("%s (%s)", name, skill)
	}
	return name
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// optional returns a pointer to v when the flag was set on the command line.
func optional[T any](cmd *cobra.Command, name string, v T) *T {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}
