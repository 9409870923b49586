package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"clinicbook/internal/config"
	"clinicbook/internal/database"
	"clinicbook/internal/domain"
	"clinicbook/internal/logging"
	"clinicbook/internal/repository"
)

var patients = []struct{ name, email, phone string }{
	{"Amal Haddad", "amal@example.com", "+971500000001"},
	{"Omar Saleh", "omar@example.com", "+971500000002"},
	{"Lina Farah", "lina@example.com", "+971500000003"},
	{"Youssef Nasser", "youssef@example.com", "+971500000004"},
}

func main() {
	root := &cobra.Command{
		Use:   "seed",
		Short: "Development helpers for the clinic booking service",
	}
	root.AddCommand(reservationsCmd(), hashPasswordCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func reservationsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "reservations",
		Short: "Insert sample reservations on the next working days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(false, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.Connect(cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer database.Close(db)
			if err := database.Migrate(db, repository.Models()...); err != nil {
				return err
			}

			repo := repository.NewReservationRepository(db)
			slots := cfg.TimeSlots.Slots()
			day := time.Now().In(cfg.Location)
			inserted, skipped := 0, 0
			for seeded := 0; seeded < days; {
				day = day.AddDate(0, 0, 1)
				if !cfg.WorkingDays.Allows(day.Weekday()) {
					continue
				}
				seeded++
				date := domain.CalendarDate(day, cfg.Location)
				for i, p := range patients {
					if i*2 >= len(slots) {
						break
					}
					r := &domain.Reservation{
						PatientName:  p.name,
						PatientEmail: p.email,
						PatientPhone: p.phone,
						Date:         date,
						Time:         slots[i*2],
						Status:       cfg.DefaultStatus,
					}
					err := repo.Insert(context.Background(), r)
					switch {
					case errors.Is(err, domain.ErrDuplicateSlot):
						skipped++
					case err != nil:
						return fmt.Errorf("insert %s %s: %w", r.Date, r.Time, err)
					default:
						inserted++
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d reservations, %d slots already taken\n", inserted, skipped)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 5, "number of working days to fill")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
