package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/kerlexov/logcollector/pkg/client"
	"github.com/kerlexov/logcollector/pkg/models"
	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:3000"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "logctl",
		Short:         "Command line client for the log collector",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serverURL := os.Getenv("LOGCOLLECTOR_URL")
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	root.PersistentFlags().String("server", serverURL, "collector base URL (env LOGCOLLECTOR_URL)")
	root.PersistentFlags().Duration("timeout", 10*time.Second, "HTTP timeout")

	root.AddCommand(
		newSubmitCommand(),
		newQueryCommand(),
		newPurgeCommand(),
		newTailCommand(),
		newHealthCommand(),
	)

	return root
}

func clientFromFlags(cmd *cobra.Command) (*client.Client, error) {
	serverURL, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	config := client.DefaultConfig()
	config.ServerURL = serverURL
	config.HTTPTimeout = timeout

	return client.New(config)
}

func newSubmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <message>",
		Short: "Submit a log entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("level")
			details, _ := cmd.Flags().GetString("details")
			appVersion, _ := cmd.Flags().GetString("app-version")
			platform, _ := cmd.Flags().GetString("platform")
			user, _ := cmd.Flags().GetString("user")

			submission := models.Submission{
				Level:         level,
				Message:       args[0],
				AppVersion:    models.StringPtr(appVersion),
				Platform:      models.StringPtr(platform),
				StakeUsername: models.StringPtr(user),
			}
			if details != "" {
				if !json.Valid([]byte(details)) {
					return errors.New("--details must be valid JSON")
				}
				submission.Details = json.RawMessage(details)
			}

			c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			record, err := c.Submit(cmd.Context(), submission)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}

	cmd.Flags().StringP("level", "l", "info", "log level")
	cmd.Flags().String("details", "", "JSON details payload")
	cmd.Flags().String("app-version", "", "application version")
	cmd.Flags().String("platform", "", "platform name")
	cmd.Flags().StringP("user", "u", "", "stake username")

	return cmd
}

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List stored log entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("level")
			user, _ := cmd.Flags().GetString("user")
			search, _ := cmd.Flags().GetString("search")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			output, _ := cmd.Flags().GetString("output")

			c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			records, err := c.Query(cmd.Context(), client.QueryOptions{
				StakeUsername: user,
				Level:         level,
				Search:        search,
				Limit:         limit,
				Offset:        offset,
			})
			if err != nil {
				return err
			}

			switch output {
			case "json":
				return printJSON(cmd.OutOrStdout(), records)
			case "table":
				return printTable(cmd.OutOrStdout(), records)
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
		},
	}

	cmd.Flags().StringP("level", "l", "", "filter by level")
	cmd.Flags().StringP("user", "u", "", "filter by stake username")
	cmd.Flags().StringP("search", "q", "", "filter by message text")
	cmd.Flags().Int("limit", 0, "maximum number of entries (server default when 0)")
	cmd.Flags().Int("offset", 0, "number of entries to skip")
	cmd.Flags().StringP("output", "o", "table", "output format: table or json")

	return cmd
}

func newPurgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored log entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return errors.New("refusing to purge without --yes")
			}

			c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			result, err := c.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}

	cmd.Flags().Bool("yes", false, "confirm the purge")

	return cmd
}

func newTailCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print log entries as they are created",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			err = c.Stream(ctx, func(record models.LogRecord) error {
				if output == "json" {
					data, err := json.Marshal(record)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, string(data))
					return err
				}
				_, err := fmt.Fprintln(out, formatLine(record))
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringP("output", "o", "text", "output format: text or json")

	return cmd
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			report, err := c.Health(cmd.Context())
			if report != nil {
				if printErr := printJSON(cmd.OutOrStdout(), report); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printTable(w io.Writer, records []models.LogRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIMESTAMP\tLEVEL\tUSER\tMESSAGE")
	for _, record := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			record.ID,
			record.Timestamp.Format(time.RFC3339),
			record.Level,
			deref(record.StakeUsername),
			record.Message,
		)
	}
	return tw.Flush()
}

func formatLine(record models.LogRecord) string {
	line := fmt.Sprintf("%s [%s] %s", record.Timestamp.Format(time.RFC3339), record.Level, record.Message)
	if user := deref(record.StakeUsername); user != "" {
		line += " user=" + user
	}
	if len(record.Details) > 0 {
		line += " details=" + string(record.Details)
	}
	return line
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
