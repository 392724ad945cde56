package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rollcall/rollcall/internal/api"
	"github.com/rollcall/rollcall/internal/app"
	"github.com/rollcall/rollcall/internal/qr"
	"github.com/rollcall/rollcall/internal/vector"
)

var version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "rollcall",
	Short: "rollcall - classroom attendance engine",
	Long:  `rollcall tracks per-session classroom attendance through biometric face matching or printed QR tokens.`,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(courseCmd)
	rootCmd.AddCommand(qrCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(statsCmd)

	courseCmd.AddCommand(courseCreateCmd)
	courseCmd.AddCommand(courseListCmd)

	qrCmd.AddCommand(qrRegisterCmd)
	qrCmd.AddCommand(qrShowCmd)

	ledgerCmd.AddCommand(ledgerExportCmd)

	qrRegisterCmd.Flags().String("username", "", "display name carried in the token")
	qrRegisterCmd.Flags().String("email", "", "unique email key for the token")
	qrRegisterCmd.MarkFlagRequired("username")
	qrRegisterCmd.MarkFlagRequired("email")

	qrShowCmd.Flags().String("out", "", "write the artifact PNG to this path")
	ledgerExportCmd.Flags().String("out", "", "write the ledger lines to this path instead of stdout")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rollcall version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rollcall %s\n", version)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP adapter over the session operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		defer a.Close()

		server := api.NewServer(a.Manager, a.Logger, a.Config.APIPort)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-sigCh:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		}
	},
}

var courseCmd = &cobra.Command{
	Use:   "course",
	Short: "Manage courses",
}

var courseCreateCmd = &cobra.Command{
	Use:   "create <crn>",
	Short: "Provision the namespace for a new course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Manager.Courses().Create(args[0]); err != nil {
			return err
		}
		fmt.Printf("course %s created\n", args[0])
		return nil
	},
}

var courseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List created courses",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		defer a.Close()

		courses, err := a.Manager.Courses().List()
		if err != nil {
			return err
		}
		for _, c := range courses {
			fmt.Printf("%s\t%s\n", c.CRN, c.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Manage QR check-in tokens",
}

var qrRegisterCmd = &cobra.Command{
	Use:   "register <crn>",
	Short: "Register a QR token and render its scannable artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		defer a.Close()

		crn := args[0]
		if err := requireCourse(a, crn); err != nil {
			return err
		}

		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")

		store := qr.NewArtifactStore(a.DB, crn)
		result, err := store.Register(username, email)
		if err != nil {
			return err
		}
		if result.Status == qr.RegistrationDuplicateEmail {
			return fmt.Errorf("email %s is already registered", email)
		}
		fmt.Printf("registered %s (%s) for course %s\n", username, email, crn)
		return nil
	},
}

var qrShowCmd = &cobra.Command{
	Use:   "show <crn> <email>",
	Short: "Write the registered QR artifact PNG for an email",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		defer a.Close()

		crn, email := args[0], args[1]
		store := qr.NewArtifactStore(a.DB, crn)
		artifact, err := store.Retrieve(email)
		if err != nil {
			return err
		}
		if artifact == nil {
			return fmt.Errorf("QR code not found for %s", email)
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = email + ".png"
		}
		if err := os.WriteFile(out, artifact.PNG, 0644); err != nil {
			return fmt.Errorf("failed to write artifact: %w", err)
		}
		fmt.Printf("wrote %s\n", out)
		return nil
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the attendance ledger",
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export <crn>",
	Short: "Export a course ledger in the canonical line layout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		defer a.Close()

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return a.Manager.Ledger().Export(os.Stdout, args[0])
		}

		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer f.Close()
		return a.Manager.Ledger().Export(f, args[0])
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-course enrollment and attendance counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		defer a.Close()

		courses, err := a.Manager.Courses().List()
		if err != nil {
			return err
		}

		for _, c := range courses {
			identities, err := vector.NewStore(a.DB, c.CRN).Count()
			if err != nil {
				return err
			}
			events, err := a.Manager.Ledger().Count(c.CRN)
			if err != nil {
				return err
			}
			fmt.Printf("%s\tidentities=%d\tevents=%d\n", c.CRN, identities, events)
		}
		return nil
	},
}

func requireCourse(a *app.App, crn string) error {
	exists, err := a.Manager.Courses().Exists(crn)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("unknown course %s (create it first)", crn)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
