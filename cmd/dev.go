package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patchwell/sidechat/pkg/config"
	"github.com/patchwell/sidechat/pkg/devagent"
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Chat through a remote dev agent server instead of an LLM provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		if cfg.DevAgent.URL == "" {
			return fmt.Errorf("dev_agent.url is not configured")
		}
		client := devagent.NewClient(cfg.DevAgent.URL, cfg.DevAgent.Timeout)
		ctx := cmd.Context()

		projects, err := client.ListProjects(ctx)
		if err != nil {
			return fmt.Errorf("failed to reach dev agent: %w", err)
		}
		if len(projects) == 0 {
			return fmt.Errorf("dev agent has no projects")
		}

		projectID, _ := cmd.Flags().GetString("project")
		if projectID == "" {
			projectID = projects[0].ID
		}

		sess, err := client.CreateSession(ctx, projectID, "sidechat dev session")
		if err != nil {
			return err
		}
		fmt.Printf("connected to project %s, session %s\n", projectID, sess.ID)

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" || line == "/exit" {
				return nil
			}
			reply, err := client.SendMessage(ctx, sess.ID, line)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println(reply.Text)
		}
	},
}

func init() {
	devCmd.Flags().String("project", "", "dev agent project id")
	rootCmd.AddCommand(devCmd)
}
