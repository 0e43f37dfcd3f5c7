package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"phototimer/internal/app"
	"phototimer/pkg/imageload"
	"phototimer/pkg/logger"
	"phototimer/pkg/ui"
)

var extractTimeout time.Duration

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "List the photos a page links to",
	Long: `Fetch a page and print the absolute URL of every image it references,
one per line, in page order. These are the photos "run" would rotate through.

URLs without a recognised image extension are still listed but marked, since
the server may serve anything there.`,
	Example: `  phototimer extract https://example.com/gallery
  phototimer extract https://example.com/gallery -q > photos.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", time.Minute, "overall time limit")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil, os.Stderr)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, logger.GetLogger())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := contextWithTimeout(cmd, extractTimeout)
	defer cancel()

	links, err := a.FetchList(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, link := range links {
		if quiet || imageload.HasSupportedExt(link) {
			fmt.Fprintln(out, link)
			continue
		}
		fmt.Fprintf(out, "%s\t(unknown image type)\n", link)
	}

	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", ui.Cyan("Photos found"), ui.Yellow(fmt.Sprintf("%d", len(links))))
	}
	return nil
}
