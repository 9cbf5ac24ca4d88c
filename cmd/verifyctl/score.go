package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gameVerifyServer/config"
	"gameVerifyServer/game"
)

// readSubmission decodes a submission from path, or stdin when path is "-".
func readSubmission(path string) (game.Submission, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return game.Submission{}, err
		}
		defer f.Close()
		r = f
	}
	var sub game.Submission
	if err := json.NewDecoder(r).Decode(&sub); err != nil {
		return game.Submission{}, fmt.Errorf("decode submission: %w", err)
	}
	return sub, nil
}

func scoreCommand() *cobra.Command {
	var tolerance int
	cmd := &cobra.Command{
		Use:   "score <submission.json|->",
		Short: "Recompute the score of a submission and check it locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := readSubmission(args[0])
			if err != nil {
				return err
			}
			if sub.GameVersion == "" {
				sub.GameVersion = config.DefaultGameVersion
			}
			state := sub.FinalState.Normalize()
			expected := game.Score(state, sub.GameVersion)

			fmt.Printf("📊 Submitted score: %d\n", sub.Score)
			fmt.Printf("📊 Expected score:  %d (version %s)\n", expected, sub.GameVersion)

			failed := false
			if vs := game.CheckSubmission(sub, game.DefaultBounds(), time.Now()); len(vs) > 0 {
				fmt.Printf("⚠️  Implausible: %s\n", game.DescribeViolations(vs))
				failed = true
			}
			if !game.ScoreMatches(sub.Score, expected, tolerance) {
				fmt.Printf("🚨 Score mismatch beyond tolerance %d\n", tolerance)
				failed = true
			}
			if failed {
				return fmt.Errorf("submission would be rejected")
			}
			fmt.Println("✅ Submission passes local checks")
			return nil
		},
	}
	cmd.Flags().IntVar(&tolerance, "tolerance", config.DefaultScoreTolerance, "allowed score difference")
	return cmd
}
