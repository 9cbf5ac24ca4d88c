package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gameVerifyServer/crypto"
)

func seedCommand() *cobra.Command {
	var verify, commitment string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a game seed with its commitment, or verify one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verify != "" {
				if !crypto.VerifySeed(verify, commitment) {
					return fmt.Errorf("seed does not match commitment")
				}
				fmt.Println("✅ Seed matches commitment")
				return nil
			}
			seed, hash, err := crypto.GenerateSeed()
			if err != nil {
				return err
			}
			fmt.Printf("🎲 Seed:       %s\n", seed)
			fmt.Printf("🔒 Commitment: %s\n", hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&verify, "verify", "", "seed to check against --commitment")
	cmd.Flags().StringVar(&commitment, "commitment", "", "sha256 commitment published before the seed")
	return cmd
}
