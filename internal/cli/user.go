package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduguardian/guardian/internal/app/progression"
	"github.com/eduguardian/guardian/internal/daemon"
)

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address")
	_ = userAddCmd.MarkFlagRequired("email")
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd, profileCmd)

	studyCmd.Flags().DurationVar(&studyDuration, "duration", 10*time.Minute, "Session length")
	studyCmd.Flags().StringVar(&studySubject, "subject", "", "Subject of the note")
	studyCmd.Flags().IntVar(&studyFlashcards, "flashcards", 0, "Flashcards reviewed in the session")
	rootCmd.AddCommand(studyCmd)
}

var (
	userName        string
	userEmail       string
	studyDuration   time.Duration
	studySubject    string
	studyFlashcards int
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add USERNAME",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	name := userName
	if name == "" {
		name = args[0]
	}
	u, err := d.Engine.RegisterUser(context.Background(), progression.NewUser{
		Name:     name,
		Username: args[0],
		Email:    userEmail,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", u.Username, u.ID)
	return nil
}

var profileCmd = &cobra.Command{
	Use:   "profile USER_ID",
	Short: "Show a user's level, streak, quota and badges",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

func runProfile(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	p, err := d.Engine.Profile(context.Background(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	u := p.User
	fmt.Fprintf(out, "User:     %s (@%s)\n", u.Name, u.Username)
	fmt.Fprintf(out, "Level:    %d  %s\n", p.Progress.Level, xpBar(p.Progress))
	fmt.Fprintf(out, "XP:       %d\n", u.XP)
	fmt.Fprintf(out, "Streak:   %d days (longest %d)\n", u.Streak.Current, u.Streak.Longest)
	for _, q := range p.Quota {
		fmt.Fprintf(out, "AI %-9s %d/%d left, resets %s\n", q.Feature+":", q.Remaining, q.Limit,
			q.ResetAt.Local().Format("2006-01-02 15:04"))
	}

	if len(p.Badges) == 0 {
		fmt.Fprintln(out, "Badges:   none yet")
		return nil
	}
	fmt.Fprintln(out, "Badges:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, b := range p.Badges {
		fmt.Fprintf(w, "  %s %s\t%s\t%s\n", b.Icon, b.Name, b.Tier, b.EarnedAt.Local().Format("2006-01-02"))
	}
	return w.Flush()
}

var studyCmd = &cobra.Command{
	Use:   "study USER_ID NOTE_ID",
	Short: "Record a completed study session",
	Args:  cobra.ExactArgs(2),
	RunE:  runStudy,
}

func runStudy(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.Engine.CompleteStudy(context.Background(), args[0], progression.StudyCompletion{
		NoteID:             args[1],
		Duration:           studyDuration,
		Subject:            studySubject,
		FlashcardsReviewed: studyFlashcards,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res.Throttled {
		fmt.Fprintf(out, "Already credited recently; try again in %s\n", res.RetryAfter.Round(time.Second))
		return nil
	}
	fmt.Fprintf(out, "+%d XP (total %d, level %d)\n", res.XPEarned, res.TotalXP, res.Level)
	if res.LeveledUp {
		fmt.Fprintf(out, "Level up! You reached level %d\n", res.Level)
	}
	fmt.Fprintf(out, "Streak: %d days\n", res.CurrentStreak)
	for _, b := range res.AwardedBadges {
		fmt.Fprintf(out, "New badge: %s %s (+%d XP)\n", b.Icon, b.Name, b.XPReward)
	}
	return nil
}
