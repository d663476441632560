package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovecrm/cardscan/internal/scanner"
)

var scanFormat string

var scanCmd = &cobra.Command{
	Use:   "scan <file>",
	Short: "Scan a business card image or PDF and print the contact record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		s := scanner.New(GetConfig(), nil)
		res := s.Scan(cmd.Context(), raw)
		if res.Err != "" {
			return fmt.Errorf("scan failed: %s", res.Err)
		}

		switch scanFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		case "text":
			printText(cmd, res)
			return nil
		default:
			return fmt.Errorf("unknown format %q (want text or json)", scanFormat)
		}
	},
}

func printText(cmd *cobra.Command, res scanner.Result) {
	out := cmd.OutOrStdout()
	if res.Contact == nil {
		fmt.Fprintln(out, "No contact fields found.")
		fmt.Fprintf(out, "Recognized text:\n%s\n", res.RawText)
		return
	}
	c := res.Contact
	fields := []struct{ label, value string }{
		{"Name", c.Name},
		{"Title", c.Title},
		{"Company", c.Company},
		{"Email", c.Email},
		{"Phone", c.Phone},
		{"Website", c.Website},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(out, "%-8s %s\n", f.label+":", f.value)
		}
	}
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "text", "output format (text, json)")
	rootCmd.AddCommand(scanCmd)
}
