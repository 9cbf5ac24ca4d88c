package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gameVerifyServer/crypto"
	"gameVerifyServer/game"
	"gameVerifyServer/sim"
)

type playFlags struct {
	seed     string
	strategy string
	maxTurns int
	player   string
}

func (f *playFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.seed, "seed", "", "game seed (random when empty)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "safety", "scripted strategy: "+strings.Join(sim.PresetNames(), ", "))
	cmd.Flags().IntVar(&f.maxTurns, "max-turns", sim.DefaultMaxTurns, "turn limit of the reference engine")
	cmd.Flags().StringVar(&f.player, "player", "", "player name sent with the submission")
}

// play runs one scripted game and packages it as a submission.
func (f *playFlags) play(listener game.FactListener) (*game.GameSession, game.Submission, error) {
	algo, err := crypto.ParseAlgorithm(globalFlags.algo)
	if err != nil {
		return nil, game.Submission{}, err
	}
	strategy, err := sim.Preset(f.strategy)
	if err != nil {
		return nil, game.Submission{}, err
	}
	seed := f.seed
	if seed == "" {
		if seed, _, err = crypto.GenerateSeed(); err != nil {
			return nil, game.Submission{}, err
		}
	}

	started := time.Now()
	s, err := sim.Play(seed, strategy, sim.Options{
		Version:   globalFlags.version,
		MaxTurns:  f.maxTurns,
		Algorithm: algo,
		Listener:  listener,
	})
	if err != nil {
		return nil, game.Submission{}, fmt.Errorf("play: %w", err)
	}
	sub, err := s.Submission(f.player, time.Now(), time.Since(started))
	if err != nil {
		return nil, game.Submission{}, err
	}
	return s, sub, nil
}

func simulateCommand() *cobra.Command {
	var (
		flags  playFlags
		asJSON bool
		trace  bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play a scripted game and print its fingerprint and score",
		RunE: func(cmd *cobra.Command, args []string) error {
			var listener game.FactListener
			if trace {
				listener = func(f game.OrderedFact) {
					fmt.Fprintf(os.Stderr, "%-16s %s\n", f.Kind(), game.CanonicalEncoding(f))
				}
			}
			s, sub, err := flags.play(listener)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(sub)
			}

			st := sub.FinalState
			fmt.Printf("🎲 Seed:        %s\n", sub.Seed)
			fmt.Printf("🔐 Fingerprint: %s\n", sub.Fingerprint)
			fmt.Printf("📋 Facts:       %d\n", s.FactCount())
			fmt.Printf("🏁 Turns:       %d\n", st.Turn)
			fmt.Printf("   Money %.2f | Doom %.2f | Papers %d | Researchers %d | Reputation %.2f\n",
				st.Money, st.Doom, st.Papers, st.Researchers, st.Reputation)
			fmt.Printf("⭐ Score:       %d\n", sub.Score)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the submission as JSON")
	cmd.Flags().BoolVar(&trace, "trace", false, "print every folded fact to stderr")
	return cmd
}
