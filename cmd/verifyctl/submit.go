package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gameVerifyServer/game"
)

func submitCommand() *cobra.Command {
	var (
		flags  playFlags
		server string
		user   string
		header string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a game to a verification server",
		Long:  "Submit plays a scripted game, or reads one with --file, and posts it to /api/submit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}

			var (
				sub game.Submission
				err error
			)
			if file != "" {
				sub, err = readSubmission(file)
			} else {
				_, sub, err = flags.play(nil)
			}
			if err != nil {
				return err
			}

			body, err := json.Marshal(sub)
			if err != nil {
				return err
			}
			url := strings.TrimRight(server, "/") + "/api/submit"
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(header, user)

			client := &http.Client{Timeout: 15 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("post submission: %w", err)
			}
			defer resp.Body.Close()

			out, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if json.Indent(&pretty, out, "", "  ") != nil {
				pretty.Reset()
				pretty.Write(out)
			}

			fmt.Printf("📨 %s -> %s\n", shortFingerprint(sub.Fingerprint), resp.Status)
			fmt.Println(pretty.String())
			switch resp.StatusCode {
			case http.StatusOK, http.StatusUnprocessableEntity:
				return nil
			default:
				return fmt.Errorf("server answered %s", resp.Status)
			}
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "verification server base URL")
	cmd.Flags().StringVar(&user, "user", "", "submitter id sent in the identity header")
	cmd.Flags().StringVar(&header, "header", "X-User-ID", "identity header name")
	cmd.Flags().StringVar(&file, "file", "", "submission JSON to send instead of playing (\"-\" for stdin)")
	return cmd
}

func shortFingerprint(fp string) string {
	if len(fp) > 16 {
		return fp[:16] + "..."
	}
	return fp
}
