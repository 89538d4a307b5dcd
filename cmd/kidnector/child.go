package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kidnector/internal/models"
	"kidnector/internal/service"
	"kidnector/internal/validation"
)

var (
	childName       string
	childAge        string
	childScreenTime int
	childAvatar     string

	recordingType     string
	recordingDuration int
)

var childCmd = &cobra.Command{
	Use:   "child",
	Short: "Manage children and their daily affirmation",
}

var childAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a child to the family",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		child, err := application.Family.AddChild(cmd.Context(), service.AddChildInput{
			Name:                   childName,
			Age:                    childAge,
			DailyScreenTimeMinutes: childScreenTime,
			Avatar:                 childAvatar,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n", child.Avatar, child.Name, child.ID)
		return nil
	},
}

var childUpdateCmd = &cobra.Command{
	Use:   "update <child-id>",
	Short: "Change a child's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var update models.ChildUpdate
		flags := cmd.Flags()
		if flags.Changed("name") {
			update.Name = &childName
		}
		if flags.Changed("age") {
			age, err := validation.ParseChildAge(childAge)
			if err != nil {
				return err
			}
			update.Age = &age
		}
		if flags.Changed("screen-time") {
			update.DailyScreenTimeMinutes = &childScreenTime
		}
		if flags.Changed("avatar") {
			update.Avatar = &childAvatar
		}

		child, err := application.Family.UpdateChild(cmd.Context(), args[0], update)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", child.Avatar, child.Name)
		return nil
	},
}

var childListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the family's children",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		children, err := application.Family.GetChildren(cmd.Context())
		if err != nil {
			return err
		}
		if len(children) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No children yet. Add one with \"kidnector child add\".")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tAGE\tSCREEN TIME\tSTREAK")
		for _, c := range children {
			fmt.Fprintf(w, "%s\t%s %s\t%d\t%d min\t%d\n", c.ID, c.Avatar, c.Name, c.Age, c.DailyScreenTimeMinutes, c.CurrentStreak)
		}
		return w.Flush()
	},
}

var childHomeCmd = &cobra.Command{
	Use:   "home <child-id>",
	Short: "Show today's affirmation and status for a child",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := application.Completions.GetChildHome(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Hi %s %s!\n\n", view.Child.Avatar, view.Child.Name)
		fmt.Fprintf(out, "%s %q\n\n", models.CategoryEmoji(view.Affirmation.Category), view.Affirmation.Text)

		switch view.Status {
		case models.DailyNotStarted:
			fmt.Fprintf(out, "Record it to earn %d minutes of screen time.\n", view.RewardMinutes)
		case models.DailyPending:
			fmt.Fprintln(out, "Waiting for a parent to listen.")
		case models.DailyApproved:
			fmt.Fprintf(out, "Approved! You earned %d minutes today.\n", view.EarnedMinutes)
		case models.DailyRedoRequested:
			fmt.Fprintf(out, "Try again: %s\n", view.RedoReason)
		}
		fmt.Fprintf(out, "Streak: %d day(s)\n", view.Child.CurrentStreak)
		return nil
	},
}

var childSubmitCmd = &cobra.Command{
	Use:   "submit <child-id> <recording-file>",
	Short: "Submit today's recorded affirmation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		view, err := application.Completions.GetChildHome(ctx, args[0])
		if err != nil {
			return err
		}
		if !view.CanRecord() {
			return service.ErrAlreadySubmitted
		}

		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("failed to open recording: %w", err)
		}
		defer f.Close()

		kind := models.RecordingType(recordingType)
		if recordingType == "" {
			kind = recordingTypeOf(args[1])
		}

		in := service.SubmitInput{
			ChildID:         view.Child.ID,
			Recording:       f,
			Type:            kind,
			DurationSeconds: recordingDuration,
		}
		if view.Affirmation.IsFallback() {
			in.AffirmationText = view.Affirmation.Text
		} else {
			in.AffirmationID = view.Affirmation.ID
		}

		if _, err := application.Completions.SubmitRecording(ctx, in); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Great job, %s! Your recording is waiting for a parent.\n", view.Child.Name)
		return nil
	},
}

var childWeekCmd = &cobra.Command{
	Use:   "week <child-id>",
	Short: "Show the last seven days",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, err := application.Completions.GetWeek(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var names, marks []string
		for _, d := range days {
			mark := " · "
			if d.Completed {
				mark = " ✓ "
			}
			name := d.DayName
			if d.IsToday {
				name = "Today"
			}
			names = append(names, fmt.Sprintf("%-5s", name))
			marks = append(marks, fmt.Sprintf("%-5s", mark))
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, strings.Join(names, " "))
		fmt.Fprintln(out, strings.Join(marks, " "))
		return nil
	},
}

// recordingTypeOf guesses the media kind from the file extension
func recordingTypeOf(path string) models.RecordingType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".webm":
		return models.RecordingVideo
	}
	return models.RecordingAudio
}

func init() {
	for _, c := range []*cobra.Command{childAddCmd, childUpdateCmd} {
		c.Flags().StringVar(&childName, "name", "", "Child's name")
		c.Flags().StringVar(&childAge, "age", "", "Child's age (3-18)")
		c.Flags().IntVar(&childScreenTime, "screen-time", 0, "Daily screen time in minutes (30, 45, 60, 90 or 120)")
		c.Flags().StringVar(&childAvatar, "avatar", "", "Avatar emoji")
	}
	childSubmitCmd.Flags().StringVar(&recordingType, "type", "", "audio or video (default: from the file extension)")
	childSubmitCmd.Flags().IntVar(&recordingDuration, "duration", 0, "Recording length in seconds")

	childCmd.AddCommand(childAddCmd, childUpdateCmd, childListCmd, childHomeCmd, childSubmitCmd, childWeekCmd)
}
