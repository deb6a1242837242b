package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"villagehub/internal/app"
	"villagehub/internal/domain"
	"villagehub/internal/engine"
	"villagehub/internal/repo"
)

func customerCmd() *cobra.Command {
	c := &cobra.Command{Use: "customer", Short: "Manage customers"}
	c.AddCommand(customerRegisterCmd())
	c.AddCommand(customerListCmd())
	return c
}

func customerRegisterCmd() *cobra.Command {
	var reg engine.CustomerRegistration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.RegisterCustomer(ctx, reg)
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "full name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email (email or phone required)")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "phone")
	cmd.Flags().StringVar(&reg.Address, "address", "", "address")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password, at least 6 characters")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func customerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List customers (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				items, err := a.Engine.ListCustomers(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func workerCmd() *cobra.Command {
	c := &cobra.Command{Use: "worker", Short: "Manage the worker directory"}
	c.AddCommand(workerRegisterCmd())
	c.AddCommand(workerSearchCmd())
	c.AddCommand(workerShowCmd())
	c.AddCommand(workerUpdateCmd())
	return c
}

func workerRegisterCmd() *cobra.Command {
	var reg engine.WorkerRegistration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				w, err := a.Engine.RegisterWorker(ctx, reg)
				if err != nil {
					return err
				}
				return printJSON(w)
			})
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "full name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email (email or phone required)")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "phone")
	cmd.Flags().StringVar(&reg.Skill, "skill", "", "skill, e.g. Plumber")
	cmd.Flags().IntVar(&reg.Experience, "experience", 0, "years of experience")
	cmd.Flags().Float64Var(&reg.PricePerHour, "price", 0, "price per hour")
	cmd.Flags().StringVar(&reg.Availability, "availability", "", "availability note")
	cmd.Flags().StringVar(&reg.Address, "address", "", "address")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password, at least 6 characters")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func workerSearchCmd() *cobra.Command {
	var f repo.WorkerSearch
	var minPrice, maxPrice float64
	cmd := &cobra.Command{
		Use:   "search [keyword]",
		Short: "Search workers, cheapest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.Keyword = args[0]
			}
			f.MinPrice = optional(cmd, "min-price", minPrice)
			f.MaxPrice = optional(cmd, "max-price", maxPrice)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.SearchWorkers(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&f.Skill, "skill", "", "exact skill")
	cmd.Flags().StringVar(&f.Availability, "availability", "", "availability contains")
	cmd.Flags().Float64Var(&minPrice, "min-price", 0, "minimum price per hour")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "maximum price per hour")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max results")
	return cmd
}

func workerShowCmd() *cobra.Command {
	var reviews bool
	cmd := &cobra.Command{
		Use:   "show <worker-id>",
		Short: "Show a worker profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				w, err := a.Engine.GetWorker(ctx, id)
				if err != nil {
					return err
				}
				if !reviews {
					return printJSON(w)
				}
				items, err := a.Engine.ListReviewsForWorker(ctx, id)
				if err != nil {
					return err
				}
				fmt.Printf("%s (%s) rating %.1f\n", w.Name, w.Skill, w.Rating)
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().BoolVar(&reviews, "reviews", false, "include reviews")
	return cmd
}

func workerUpdateCmd() *cobra.Command {
	var (
		name, phone, skill, availability, address string
		experience                                int
		price                                     float64
	)
	cmd := &cobra.Command{
		Use:   "update <worker-id>",
		Short: "Edit a worker profile (the worker or an admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			u := repo.WorkerUpdate{
				Name:         optional(cmd, "name", name),
				Phone:        optional(cmd, "phone", phone),
				Skill:        optional(cmd, "skill", skill),
				Experience:   optional(cmd, "experience", experience),
				PricePerHour: optional(cmd, "price", price),
				Availability: optional(cmd, "availability", availability),
				Address:      optional(cmd, "address", address),
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				w, err := a.Engine.UpdateWorkerProfile(ctx, actor, id, u)
				if err != nil {
					return err
				}
				return printJSON(w)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone")
	cmd.Flags().StringVar(&skill, "skill", "", "skill")
	cmd.Flags().IntVar(&experience, "experience", 0, "years of experience")
	cmd.Flags().Float64Var(&price, "price", 0, "price per hour")
	cmd.Flags().StringVar(&availability, "availability", "", "availability note")
	cmd.Flags().StringVar(&address, "address", "", "address")
	return cmd
}

func adminCmd() *cobra.Command {
	c := &cobra.Command{Use: "admin", Short: "Moderation and dashboard"}
	c.AddCommand(adminCreateCmd())
	c.AddCommand(adminStatsCmd())
	c.AddCommand(adminDeleteCmd("delete-customer", "Delete a customer; their bookings stay without a customer",
		func(ctx context.Context, a *app.App, id int64) error {
			actor, err := currentActor(ctx, a)
			if err != nil {
				return err
			}
			return a.Engine.DeleteCustomer(ctx, actor, id)
		}))
	c.AddCommand(adminDeleteCmd("delete-worker", "Delete a worker; their bookings stay without a worker",
		func(ctx context.Context, a *app.App, id int64) error {
			actor, err := currentActor(ctx, a)
			if err != nil {
				return err
			}
			return a.Engine.DeleteWorker(ctx, actor, id)
		}))
	c.AddCommand(adminDeleteCmd("delete-booking", "Delete a booking with its review and chat",
		func(ctx context.Context, a *app.App, id int64) error {
			actor, err := currentActor(ctx, a)
			if err != nil {
				return err
			}
			return a.Engine.DeleteBooking(ctx, actor, id)
		}))
	c.AddCommand(adminForceCmd())
	return c
}

func adminCreateCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Bootstrap an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				adm, err := a.Engine.RegisterAdmin(ctx, username, password)
				if err != nil {
					return err
				}
				return printJSON(adm)
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 6 characters")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func adminStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				st, err := a.Engine.Stats(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				fmt.Printf("Customers: %d\nWorkers: %d\nBookings: %d\n", st.Customers, st.Workers, st.Bookings)
				for _, s := range domain.Statuses {
					fmt.Printf("  %s: %d\n", s, st.ByStatus[s])
				}
				return nil
			})
		},
	}
}

func adminDeleteCmd(use, short string, del func(context.Context, *app.App, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := del(ctx, a, id); err != nil {
					return err
				}
				fmt.Printf("Deleted %d\n", id)
				return nil
			})
		},
	}
}

func adminForceCmd() *cobra.Command {
	var status, reason string
	cmd := &cobra.Command{
		Use:   "force <booking-id>",
		Short: "Override a booking status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			target, err := domain.ParseStatus(status)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := currentActor(ctx, a)
				if err != nil {
					return err
				}
				b, err := a.Engine.ForceTransition(ctx, id, actor, target, reason)
				if err != nil {
					return err
				}
				return printJSON(b)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "target status")
	cmd.Flags().StringVar(&reason, "reason", "", "why the override is needed")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
