package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/savid/tvstream/pkg/m3u"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().Bool("json", false, "Print channels as JSON")
}

var parseCmd = &cobra.Command{
	Use:   "parse <path|url>",
	Short: "Parse a playlist and print its channels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout)
		defer cancel()

		client := &http.Client{Timeout: cfg.FetchTimeout}
		channels, err := m3u.Load(ctx, m3u.NewSource(afero.NewOsFs(), client, cfg.UserAgent, args[0]))
		if err != nil {
			return err
		}

		if lo.Must(cmd.Flags().GetBool("json")) {
			return printJSON(cmd.OutOrStdout(), channels)
		}
		return printTable(cmd.OutOrStdout(), channels)
	},
}

func printJSON(w io.Writer, channels []m3u.Channel) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(channels)
}

func printTable(w io.Writer, channels []m3u.Channel) error {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("ID", "NAME", "CATEGORY", "URL").
		Rows(lo.Map(channels, func(ch m3u.Channel, _ int) []string {
			return []string{strconv.Itoa(ch.ID), ch.Name, ch.Category, ch.StreamURL}
		})...)

	_, err := fmt.Fprintf(w, "%s\n%d channels\n", t.Render(), len(channels))
	return err
}
