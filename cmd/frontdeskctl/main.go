package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/frontdesk-api/internal/bootstrap"
	"github.com/jwalitptl/frontdesk-api/internal/config"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository/document"
	"github.com/jwalitptl/frontdesk-api/internal/service/booking"
	"github.com/jwalitptl/frontdesk-api/internal/service/calendar"
	"github.com/jwalitptl/frontdesk-api/pkg/auth"
	"github.com/jwalitptl/frontdesk-api/pkg/logger"
	"github.com/jwalitptl/frontdesk-api/pkg/messaging"
	"github.com/jwalitptl/frontdesk-api/pkg/messaging/redis"
	"github.com/jwalitptl/frontdesk-api/pkg/metrics"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "frontdeskctl",
		Short:        "Administer the front desk API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yml (default: search the usual locations)")

	load := func() (*config.Config, error) {
		if configPath != "" {
			return config.LoadFile(configPath)
		}
		return config.LoadConfig()
	}

	root.AddCommand(slotsCmd(load))
	root.AddCommand(availabilityCmd(load))
	root.AddCommand(adminCmd(load))
	root.AddCommand(tokenCmd(load))
	root.AddCommand(eventsCmd(load))
	return root
}

type loader func() (*config.Config, error)

func slotsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "Print the bookable slots of a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			policy, err := calendar.NewPolicy(cfg.Calendar)
			if err != nil {
				return err
			}
			return printSlots(cmd.OutOrStdout(), policy.Slots())
		},
	}
}

func availabilityCmd(load loader) *cobra.Command {
	var doctorID, date string
	var watch bool
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print a doctor's free slots on a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			policy, err := calendar.NewPolicy(cfg.Calendar)
			if err != nil {
				return err
			}
			backend, err := bootstrap.OpenBackend(cmd.Context(), cfg, metrics.New("frontdeskctl"), logger.Nop())
			if err != nil {
				return err
			}
			defer backend.Close()

			svc := booking.NewService(document.NewAppointmentRepository(backend.Store), backend.Files, policy, cfg.Booking.Config)
			out := cmd.OutOrStdout()
			if !watch {
				slots, err := svc.AvailableSlots(cmd.Context(), doctorID, date)
				if err != nil {
					return err
				}
				return printSlots(out, slots)
			}

			sub, err := svc.WatchAvailability(cmd.Context(), doctorID, date, func(slots []string) {
				fmt.Fprintf(out, "%s  %s\n", time.Now().Format(time.TimeOnly), strings.Join(slots, " "))
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()
			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "doctor id")
	cmd.Flags().StringVar(&date, "date", time.Now().Format(model.DateLayout), "day as YYYY-MM-DD")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep printing availability on every change")
	_ = cmd.MarkFlagRequired("doctor")
	return cmd
}

func adminCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var email, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an approved administrator",
		Long:  "Administrators cannot register through the API. This writes one directly to the store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			backend, err := bootstrap.OpenBackend(cmd.Context(), cfg, metrics.New("frontdeskctl"), logger.Nop())
			if err != nil {
				return err
			}
			defer backend.Close()

			users := document.NewUserRepository(backend.Store)
			existing, err := users.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range existing {
				if strings.EqualFold(u.Email, email) {
					return fmt.Errorf("%s is already registered as %s", email, u.Role)
				}
			}

			admin := &model.User{
				Email:    strings.ToLower(strings.TrimSpace(email)),
				FullName: name,
				Role:     model.UserRoleAdmin,
				Status:   model.UserStatusApproved,
			}
			if err := users.Create(cmd.Context(), admin); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), admin.ID)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "administrator email")
	create.Flags().StringVar(&name, "name", "Administrator", "full name")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}

func tokenCmd(load loader) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for a stored user",
		Long:  "Tokens are normally issued by the identity provider. This is meant for local development and smoke tests.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			tokens, err := auth.NewJWTService(auth.Config{
				Secret: cfg.JWT.Secret,
				Issuer: cfg.JWT.Issuer,
				Expiry: cfg.JWT.Expiry,
			})
			if err != nil {
				return err
			}
			backend, err := bootstrap.OpenBackend(cmd.Context(), cfg, metrics.New("frontdeskctl"), logger.Nop())
			if err != nil {
				return err
			}
			defer backend.Close()

			user, err := document.NewUserRepository(backend.Store).Get(cmd.Context(), userID)
			if err != nil {
				return err
			}
			token, err := tokens.GenerateAccessToken(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func eventsCmd(load loader) *cobra.Command {
	var types []string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print events published by the outbox worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			adapter := messaging.NewBrokerAdapter(broker, func(topic string, err error) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", topic, err)
			})
			defer adapter.Close()

			for _, t := range types {
				err := adapter.Subscribe(cmd.Context(), t, func(raw []byte) error {
					var env messaging.Envelope
					if err := json.Unmarshal(raw, &env); err != nil {
						return fmt.Errorf("undecodable event: %w", err)
					}
					payload, _ := json.Marshal(env.Payload)
					fmt.Fprintf(out, "%s %s %s\n", env.Type, env.ID, payload)
					return nil
				})
				if err != nil {
					return err
				}
			}
			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&types, "type", model.EventTypes, "event types to follow")
	return cmd
}

func printSlots(w io.Writer, slots []string) error {
	if len(slots) == 0 {
		_, err := fmt.Fprintln(w, "no free slots")
		return err
	}
	_, err := fmt.Fprintln(w, strings.Join(slots, " "))
	return err
}
