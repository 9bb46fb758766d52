// Command nycprice runs the NYC Airbnb price pipeline and manages its
// tracked artifacts.
//
// Usage:
//
//	nycprice [flags] [run] [key=value ...]
//	nycprice [flags] promote <artifact:version> <alias> [key=value ...]
//	nycprice [flags] artifacts <name> [key=value ...]
//
// Dotted key=value pairs override the YAML configuration, e.g.
// main.steps=download,basic_cleaning or etl.min_price=20.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/YuminosukeSato/nycprice/config"
	"github.com/YuminosukeSato/nycprice/pipeline"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
	"github.com/YuminosukeSato/nycprice/telemetry"
	"github.com/YuminosukeSato/nycprice/tracking"
)

const (
	cmdRun       = "run"
	cmdPromote   = "promote"
	cmdArtifacts = "artifacts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "nycprice:", err)
		}
		os.Exit(1)
	}
}

// command is a parsed invocation.
type command struct {
	name      string
	args      []string
	overrides []string
	load      config.Options
}

func parseArgs(args []string, stderr io.Writer) (*command, error) {
	fs := flag.NewFlagSet("nycprice", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "configs/config.yaml", "YAML configuration file")
	envFile := fs.String("env", ".env", "dotenv file loaded before reading NYC_* variables")
	logLevel := fs.String("log-level", "", "debug, info, warn or error; overrides log.level")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: nycprice [flags] [run|promote <artifact:version> <alias>|artifacts <name>] [key=value ...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c := &command{name: cmdRun}
	rest := fs.Args()
	if len(rest) > 0 && !strings.Contains(rest[0], "=") {
		c.name, rest = rest[0], rest[1:]
	}
	want := map[string]int{cmdRun: 0, cmdPromote: 2, cmdArtifacts: 1}
	n, ok := want[c.name]
	if !ok {
		return nil, errors.Newf("unknown command %q", c.name)
	}
	for _, a := range rest {
		if strings.Contains(a, "=") {
			c.overrides = append(c.overrides, a)
		} else {
			c.args = append(c.args, a)
		}
	}
	if len(c.args) != n {
		return nil, errors.Newf("%s takes %d argument(s), got %d", c.name, n, len(c.args))
	}
	if *logLevel != "" {
		c.overrides = append(c.overrides, "log.level="+*logLevel)
	}
	c.load = config.Options{Path: *cfgPath, EnvFiles: []string{*envFile}, Overrides: c.overrides}
	return c, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	c, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := config.Load(c.load)
	if err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.Log.Level); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("nycprice")

	shutdown, err := telemetry.InitTracing(ctx, cfg.Telemetry.OTel)
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdown(context.WithoutCancel(ctx)); serr != nil {
			logger.Warn("Tracing shutdown failed", "error", serr)
		}
	}()

	client, err := tracking.Open(ctx, cfg.Tracking)
	if err != nil {
		return err
	}
	defer client.Close()

	switch c.name {
	case cmdPromote:
		if err := client.Alias(ctx, c.args[0], c.args[1]); err != nil {
			return err
		}
		logger.Info("Alias moved", log.ArtifactKey, c.args[0], "alias", c.args[1])
		return nil
	case cmdArtifacts:
		versions, err := client.Artifacts(ctx, c.args[0])
		if err != nil {
			return err
		}
		return printVersions(stdout, versions)
	}

	r, err := pipeline.New(cfg, client)
	if err != nil {
		return err
	}
	return r.Run(ctx)
}

func printVersions(w io.Writer, versions []tracking.ArtifactVersion) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tTYPE\tALIASES\tFILES\tDIGEST\tCREATED")
	for _, v := range versions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.12s\t%s\n",
			v.Ref(), v.Type, strings.Join(v.Aliases, ","), len(v.Files), v.Digest,
			v.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
