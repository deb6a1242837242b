package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"villagehub/internal/app"
	"villagehub/internal/domain"
	"villagehub/internal/engine"
	"villagehub/internal/engine/auth"
	"villagehub/internal/notify"
	"villagehub/internal/repo"
)

func bookingCmd() *cobra.Command {
	c := &cobra.Command{Use: "booking", Short: "Create and move bookings"}
	c.AddCommand(bookingCreateCmd())
	c.AddCommand(bookingListCmd())
	c.AddCommand(bookingShowCmd())
	c.AddCommand(bookingTransitionCmd())
	return c
}

func bookingCreateCmd() *cobra.Command {
	var opts engine.BookingCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Request a booking with a worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				opts.Actor = actor
				if opts.CustomerID == 0 && actor.Role == domain.RoleCustomer {
					opts.CustomerID = actor.ID
				}
				b, err := a.Engine.CreateBooking(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(b)
			})
		},
	}
	cmd.Flags().Int64Var(&opts.CustomerID, "customer", 0, "customer id (defaults to the acting customer)")
	cmd.Flags().Int64Var(&opts.WorkerID, "worker", 0, "worker id")
	cmd.Flags().StringVar(&opts.ServiceDate, "date", "", "service date")
	cmd.Flags().StringVar(&opts.Address, "address", "", "service address")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes for the worker")
	_ = cmd.MarkFlagRequired("worker")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func bookingListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the acting party's bookings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				var items []domain.BookingSummary
				if actor.Role == domain.RoleAdmin && status != "" {
					items, err = a.Engine.ListAllBookings(ctx, actor, domain.Status(strings.ToLower(status)))
				} else {
					items, err = a.Engine.ListBookingsFor(ctx, actor)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (admin)")
	return cmd
}

func bookingShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <booking-id>",
		Short: "Show a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				b, err := a.Engine.GetBooking(ctx, id)
				if err != nil {
					return err
				}
				if !auth.IsParticipant(b, actor) {
					return fmt.Errorf("booking %d belongs to other parties", id)
				}
				if viper.GetBool("json") {
					return printJSON(b)
				}
				fmt.Printf("Booking %d: %s on %s at %s\n", b.ID, b.Status, b.ServiceDate, b.Address)
				if next := b.Status.Next(); len(next) > 0 {
					fmt.Printf("Next: %v\n", next)
				}
				return nil
			})
		},
	}
}

func bookingTransitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transition <booking-id> <status>",
		Short: "Accept, reject or complete a booking (assigned worker)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			target, err := domain.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				b, err := a.Engine.TransitionBooking(ctx, id, actor, target)
				if err != nil {
					return err
				}
				return printJSON(b)
			})
		},
	}
}

func reviewCmd() *cobra.Command {
	c := &cobra.Command{Use: "review", Short: "Review completed bookings"}
	c.AddCommand(reviewSubmitCmd())
	c.AddCommand(reviewEligibilityCmd())
	return c
}

func reviewSubmitCmd() *cobra.Command {
	var rating int
	var text string
	cmd := &cobra.Command{
		Use:   "submit <booking-id>",
		Short: "Review a completed booking (its customer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				if err := auth.RequireRole(actor, domain.RoleCustomer); err != nil {
					return err
				}
				r, err := a.Engine.SubmitReview(ctx, id, actor.ID, rating, text)
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
	cmd.Flags().IntVar(&rating, "rating", 0, "rating from 1 to 5")
	cmd.Flags().StringVar(&text, "text", "", "review text")
	_ = cmd.MarkFlagRequired("rating")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func reviewEligibilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eligibility <booking-id>",
		Short: "Print none, eligible or reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				el, err := a.Engine.CheckReviewEligibility(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"booking_id": id, "eligibility": el})
				}
				fmt.Println(el)
				return nil
			})
		},
	}
}

func chatCmd() *cobra.Command {
	c := &cobra.Command{Use: "chat", Short: "Booking chat"}
	c.AddCommand(chatPostCmd())
	c.AddCommand(chatHistoryCmd())
	return c
}

func chatPostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post <booking-id> <message>",
		Short: "Send a message as the acting customer or worker",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				m, err := a.Engine.PostMessage(ctx, id, actor.ID, actor.Role, text)
				if err != nil {
					return err
				}
				return printJSON(m)
			})
		},
	}
}

func chatHistoryCmd() *cobra.Command {
	var after int64
	cmd := &cobra.Command{
		Use:   "history <booking-id>",
		Short: "Show a booking's chat, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.MessagesAfter(ctx, id, after)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().Int64Var(&after, "after", 0, "only messages after this id")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll for booking status changes and new messages",
		Long:  "Polls on the configured interval and prints what changed for the acting party. The first poll only sets a baseline.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				w := &notify.Watcher{
					Source:   a.Engine,
					Actor:    actor,
					Interval: a.Config.Poll.Interval,
					Log:      a.Log,
					Handler: func(u notify.Update) {
						if viper.GetBool("json") {
							_ = printJSON(u)
							return
						}
						for _, c := range u.StatusChanges {
							if c.From == "" {
								fmt.Printf("booking %d: new, %s\n", c.Booking.ID, c.To)
								continue
							}
							fmt.Printf("booking %d: %s -> %s\n", c.Booking.ID, c.From, c.To)
						}
						for _, m := range u.Messages {
							fmt.Printf("booking %d: %s %d says %q\n", m.BookingID, m.SenderRole, m.SenderID, m.Text)
						}
					},
				}
				a.Log.Info("watching", "actor_id", actor.ID, "role", actor.Role, "interval", w.Interval)
				if err := w.Run(ctx); err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	c := &cobra.Command{Use: "log", Short: "Event log"}
	c.AddCommand(logTailCmd())
	return c
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest events (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				items, err := a.Engine.Events(ctx, actor, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().Int64Var(&f.EntityID, "entity-id", 0, "entity id")
	cmd.Flags().Int64Var(&f.Before, "before", 0, "only events older than this id")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
