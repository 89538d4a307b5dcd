package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kidnector/internal/service"
)

var (
	emailFlag    string
	passwordFlag string
	nameFlag     string
	timezoneFlag string
)

// password reads --password, falling back to KIDNECTOR_PASSWORD so it stays out of shell history
func password() string {
	if passwordFlag != "" {
		return passwordFlag
	}
	return os.Getenv("KIDNECTOR_PASSWORD")
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a parent account and start the free trial",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw := password()
		res, err := application.Auth.SignUp(cmd.Context(), service.SignUpInput{
			Email:           emailFlag,
			Password:        pw,
			ConfirmPassword: pw,
			ParentName:      nameFlag,
			Timezone:        timezoneFlag,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Welcome, %s! Your free trial ends %s.\n",
			res.Family.ParentName, res.Family.TrialEndsAt.Local().Format("Mon 2 Jan 2006"))
		if res.NeedsConfirmation {
			fmt.Fprintln(out, "Check your email to confirm your account, then run \"kidnector login\".")
		}
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := application.Auth.SignIn(cmd.Context(), emailFlag, password())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", session.User.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Auth.SignOut(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var resendCmd = &cobra.Command{
	Use:   "resend-verification",
	Short: "Send the account confirmation email again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Auth.ResendVerification(cmd.Context(), emailFlag); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Verification email sent to %s\n", emailFlag)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the signed-in family, trial and children",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = application.Session.Run(ctx)
		}()
		defer func() {
			cancel()
			<-done
		}()

		state, err := application.Session.Snapshot(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !state.SignedIn() {
			fmt.Fprintln(out, "Not signed in")
			return nil
		}

		fmt.Fprintf(out, "Signed in as %s\n", state.User.Email)
		if state.Family == nil {
			fmt.Fprintln(out, "No family profile found")
			return nil
		}
		fmt.Fprintf(out, "Family: %s (%s)\n", state.Family.ParentName, state.Family.SubscriptionStatus)

		trial, err := application.Family.GetTrialInfo(ctx)
		if err != nil {
			return err
		}
		if trial.IsTrialActive {
			fmt.Fprintf(out, "Trial: %d day(s) left\n", trial.DaysRemaining)
		}
		if !state.Family.OnboardingCompleted {
			fmt.Fprintln(out, "Onboarding: not finished")
		}
		fmt.Fprintf(out, "Children: %d\n", len(state.Children))
		for _, c := range state.Children {
			fmt.Fprintf(out, "  %s %s (%d) %s\n", c.Avatar, c.Name, c.Age, c.ID)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{signupCmd, loginCmd, resendCmd} {
		c.Flags().StringVar(&emailFlag, "email", "", "Parent email address")
		_ = c.MarkFlagRequired("email")
	}
	for _, c := range []*cobra.Command{signupCmd, loginCmd} {
		c.Flags().StringVar(&passwordFlag, "password", "", "Password (or set KIDNECTOR_PASSWORD)")
	}
	signupCmd.Flags().StringVar(&nameFlag, "name", "", "Parent's name")
	signupCmd.Flags().StringVar(&timezoneFlag, "timezone", "", "IANA timezone (default: local)")
}
