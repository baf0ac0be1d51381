package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vvip-tv/vvip-parser/internal/fetch"
	"github.com/vvip-tv/vvip-parser/internal/query"
)

type extractOptions struct {
	file string
	url  string
	base string
	mode string
	text string
	link string
	json bool
}

func newExtractCommand(a *app) *cobra.Command {
	var opts extractOptions
	cmd := &cobra.Command{
		Use:   "extract <rule>",
		Short: "Apply an extraction rule to a document",
		Long: `Apply an extraction rule to HTML, or a JSON path to JSON, the way plugins
do with pdfh, pdfa, pdfl and jsonPath. The document is read from --file,
fetched from --url, or read from stdin.

  vvip extract --url https://example.com '.list&&li&&a&&href'
  vvip extract --file page.html --mode all '.list&&li'
  vvip extract --file api.json --json 'data.items.0.name'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, base, err := a.readDocument(cmd, opts)
			if err != nil {
				return err
			}
			if opts.base == "" {
				opts.base = base
			}
			results, err := extract(a, doc, args[0], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintln(out, r)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "read the document from a file")
	f.StringVarP(&opts.url, "url", "u", "", "fetch the document")
	f.StringVar(&opts.base, "base", "", "base URL for resolving links (default: --url)")
	f.StringVar(&opts.mode, "mode", "one", "one, all or list")
	f.StringVar(&opts.text, "text", "", "list mode: rule for each item's text")
	f.StringVar(&opts.link, "link", "", "list mode: rule for each item's link")
	f.BoolVar(&opts.json, "json", false, "treat the rule as a JSON path")
	cmd.MarkFlagsMutuallyExclusive("file", "url")
	return cmd
}

// readDocument returns the document text and the URL it came from.
func (a *app) readDocument(cmd *cobra.Command, opts extractOptions) (string, string, error) {
	switch {
	case opts.file != "":
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return "", "", err
		}
		return string(data), "", nil
	case opts.url != "":
		res := a.client.Do(cmd.Context(), fetch.Request{URL: opts.url})
		if !res.OK {
			return "", "", fmt.Errorf("fetch %s: %d %s", opts.url, res.Status, res.StatusText)
		}
		return res.Content, res.URL, nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", err
		}
		return string(data), "", nil
	}
}

func extract(a *app, doc, rule string, opts extractOptions) ([]string, error) {
	if opts.json {
		if opts.mode == "all" {
			return query.JSONGetAll(doc, rule), nil
		}
		return []string{query.JSONGet(doc, rule)}, nil
	}

	parsed, err := query.Parse(doc)
	if err != nil {
		return nil, err
	}
	engine := query.New(query.WithLogger(a.logger.Named("query")))
	switch opts.mode {
	case "one":
		return []string{engine.ExtractOne(parsed, rule, opts.base)}, nil
	case "all":
		return engine.ExtractAll(parsed, rule), nil
	case "list":
		if opts.text == "" || opts.link == "" {
			return nil, errors.New("list mode needs --text and --link")
		}
		return engine.ExtractPairs(parsed, rule, opts.text, opts.link, opts.base), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.mode)
	}
}
