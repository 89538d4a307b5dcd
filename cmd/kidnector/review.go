package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kidnector/internal/models"
)

var (
	approveMinutes int
	redoReason     string

	affirmationText  string
	affirmationChild string

	deviceType  string
	deviceChild string
)

var completionsCmd = &cobra.Command{
	Use:   "completions",
	Short: "Review the children's recordings",
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List recordings waiting for review",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pending, err := application.Completions.GetPendingCompletions(cmd.Context())
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to review")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCHILD\tSUBMITTED\tAFFIRMATION\tRECORDING")
		for _, p := range pending {
			child := ""
			if p.Child != nil {
				child = p.Child.Avatar + " " + p.Child.Name
			}
			recording := ""
			if p.RecordingURL != nil {
				recording = *p.RecordingURL
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				p.ID, child, p.SubmittedAt.Local().Format("Jan 2 15:04"), p.AffirmationText(), recording)
		}
		return w.Flush()
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <completion-id>",
	Short: "Approve a recording and grant screen time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := application.Completions.Approve(cmd.Context(), args[0], approveMinutes)
		if err != nil {
			return err
		}
		minutes := 0
		if c.ScreenTimeEarnedMinutes != nil {
			minutes = *c.ScreenTimeEarnedMinutes
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Approved: %d minutes of screen time granted\n", minutes)
		return nil
	},
}

var redoCmd = &cobra.Command{
	Use:   "redo <completion-id>",
	Short: "Ask the child to record again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := application.Completions.RequestRedo(cmd.Context(), args[0], redoReason); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Redo requested")
		return nil
	},
}

var affirmationsCmd = &cobra.Command{
	Use:   "affirmations",
	Short: "Manage the affirmation catalog",
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill an empty catalog with the starter affirmations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := application.Completions.SeedAffirmations(cmd.Context())
		if err != nil {
			return err
		}
		active, err := application.Completions.CountAffirmations(cmd.Context())
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Affirmations already exist (%d active), skipping seed\n", active)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d affirmations (%d active)\n", n, active)
		return nil
	},
}

var customAddCmd = &cobra.Command{
	Use:   "custom-add",
	Short: "Write an affirmation for the family or one child",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		aff, err := application.Family.AddCustomAffirmation(cmd.Context(), affirmationText, affirmationChild)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s %q\n", models.CategoryEmoji("custom"), aff.Text)
		return nil
	},
}

var customListCmd = &cobra.Command{
	Use:   "custom-list",
	Short: "List the family's own affirmations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		affs, err := application.Family.ListCustomAffirmations(cmd.Context())
		if err != nil {
			return err
		}
		for _, a := range affs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", a.ID, a.Text)
		}
		return nil
	},
}

var onboardingCmd = &cobra.Command{
	Use:   "onboarding",
	Short: "First-run setup",
}

var onboardingCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Mark first-run setup as done",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Family.CompleteOnboarding(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "You're all set!")
		return nil
	},
}

var onboardingTimezoneCmd = &cobra.Command{
	Use:   "timezone [name]",
	Short: "Set the family's timezone (default: this machine's)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		tz, err := application.Family.UpdateTimezone(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Timezone set to %s\n", tz)
		return nil
	},
}

var pushTokenCmd = &cobra.Command{
	Use:   "push-token",
	Short: "Manage notification devices",
}

var pushRegisterCmd = &cobra.Command{
	Use:   "register <token>",
	Short: "Register a device for notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Family.RegisterPushToken(cmd.Context(), args[0], deviceType, deviceChild); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Device registered")
		return nil
	},
}

var pushUnregisterCmd = &cobra.Command{
	Use:   "unregister <token>",
	Short: "Stop notifications to a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Family.UnregisterPushToken(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Device removed")
		return nil
	},
}

func init() {
	approveCmd.Flags().IntVar(&approveMinutes, "minutes", 0, "Minutes to grant (default: the child's daily allowance)")
	redoCmd.Flags().StringVar(&redoReason, "reason", "", "What to do differently")
	completionsCmd.AddCommand(pendingCmd, approveCmd, redoCmd)

	customAddCmd.Flags().StringVar(&affirmationText, "text", "", "Affirmation text")
	customAddCmd.Flags().StringVar(&affirmationChild, "child", "", "Only for this child")
	_ = customAddCmd.MarkFlagRequired("text")
	affirmationsCmd.AddCommand(seedCmd, customAddCmd, customListCmd)

	onboardingCmd.AddCommand(onboardingCompleteCmd, onboardingTimezoneCmd)

	pushRegisterCmd.Flags().StringVar(&deviceType, "device", "", "ios or android")
	pushRegisterCmd.Flags().StringVar(&deviceChild, "child", "", "Child using the device")
	pushTokenCmd.AddCommand(pushRegisterCmd, pushUnregisterCmd)
}
