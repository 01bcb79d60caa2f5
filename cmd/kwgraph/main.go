// Command kwgraph manages a keyword relationship graph and serves its
// interactive viewer.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/kwgraph/internal/ui"
)

var version = "0.3.0-dev"

// rootOptions carries the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	backend    string
	natsURL    string
	namespace  string
	logLevel   string

	// Set by serve before opening the app.
	host string
	port string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.Bad.Sprint("Error:"), err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "kwgraph",
		Short: "kwgraph: keyword relationship graph",
		Long: ui.Brand.Sprint("kwgraph") + " classifies keywords by how connected they are\n" +
			ui.Subtle.Sprint("Edit the graph from the terminal, an MCP client, or the web viewer"),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetVersionTemplate("kwgraph {{ .Version }}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default ~/.kwgraph/config.yaml)")
	pf.StringVar(&opts.dbPath, "db", "", "SQLite database path")
	pf.StringVar(&opts.backend, "backend", "", "Storage backend: sqlite, nats or memory")
	pf.StringVar(&opts.natsURL, "nats-url", "", "NATS server URL for the nats backend")
	pf.StringVar(&opts.namespace, "namespace", "", "Key namespace shared by cooperating processes")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		serveCmd(opts),
		mcpCmd(opts),
		listCmd(opts),
		viewCmd(opts),
		addCmd(opts),
		removeCmd(opts),
		renameCmd(opts),
		roleCmd(opts),
		weightCmd(opts),
		connectCmd(opts),
		disconnectCmd(opts),
		clearCmd(opts),
		seedCmd(opts),
		exportCmd(opts),
		importCmd(opts),
		trackCmd(opts),
		usageCmd(opts),
		configCmd(opts),
	)
	return root
}
