package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"villagehub/internal/app"
	"villagehub/internal/domain"
	"villagehub/internal/notify"
	"villagehub/internal/server"
)

func authConfig(a *app.App) server.AuthConfig {
	return server.AuthConfig{
		JWTSecret:         os.Getenv("VILLAGEHUB_JWT_SECRET"),
		Issuer:            a.Config.Auth.Issuer,
		TokenTTL:          a.Config.Auth.TokenTTL,
		AllowActorHeaders: a.Config.Auth.AllowActorHeaders,
		Logger:            a.Log,
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server and event dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(ctx context.Context, a *app.App) error {
				if !cmd.Flags().Changed("addr") {
					addr = a.Config.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") {
					basePath = a.Config.Server.BasePath
				}
				authCfg := authConfig(a)
				if authCfg.JWTSecret == "" && !authCfg.AllowActorHeaders {
					return fmt.Errorf("VILLAGEHUB_JWT_SECRET is required for bearer auth (run 'vh init')")
				}
				handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg, Log: a.Log})
				if err != nil {
					return err
				}

				dispatcher, err := notify.NewDispatcher(a.Engine.Repo, a.Config, a.Log)
				if err != nil {
					return err
				}
				defer dispatcher.Close()
				if dispatcher.Len() > 0 {
					go func() {
						if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
							a.Log.Error("dispatcher stopped", "err", err)
						}
					}()
				}

				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Log.Info("serving villagehub API", "addr", addr, "base_path", basePath, "sinks", dispatcher.Len())
				fmt.Printf("Serving Villagehub API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func tokenCmd() *cobra.Command {
	var role, login, password string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Log in and print a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := a.Auth.Login(ctx, domain.Role(role), login, password)
				if err != nil {
					return err
				}
				token, exp, err := server.IssueToken(authConfig(a), actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"token":      token,
						"expires_at": exp.UTC().Format(time.RFC3339),
						"actor_id":   actor.ID,
						"role":       actor.Role,
					})
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "customer", "customer, worker or admin")
	cmd.Flags().StringVar(&login, "login", "", "email or phone, or admin username")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("login")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
