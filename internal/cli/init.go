package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dcgate/dcgate/internal/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup to generate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = defaultConfigPath
			}
			if _, err := os.Stat(output); err == nil {
				return fmt.Errorf("%s already exists, remove it first", output)
			}
			return runInit(defaultPrompter(), output)
		},
	}
	cmd.Flags().StringP("output", "o", "", "output config file path (default: ./dcgate.json)")
	return cmd
}

func runInit(p *prompter, output string) error {
	secret, err := config.GenerateRandomSecret()
	if err != nil {
		return err
	}

	cfg := map[string]any{
		"server": map[string]any{
			"addr": p.ask("Listen address", ":5600"),
		},
		"auth": map[string]any{
			"jwt_secret": secret,
		},
		"storage": map[string]any{
			"driver": p.ask("Storage driver (sqlite/postgres)", "sqlite"),
			"dsn":    p.ask("Database DSN", "dcgate.db"),
		},
		"logging": map[string]any{
			"level":  "info",
			"format": "json",
		},
	}

	username := p.ask("Initial admin username", "admin")
	password := p.askPassword("Initial admin password")
	if password != "" {
		cfg["auth"].(map[string]any)["initial_admin"] = map[string]string{
			"username": username,
			"password": password,
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", output)
	return nil
}
