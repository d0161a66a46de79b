package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"asyncsql/internal/application"
	"asyncsql/internal/config"
	"asyncsql/internal/domain"
	"asyncsql/internal/engine"
	"asyncsql/internal/infra/logging"

	"github.com/spf13/cobra"
)

var (
	noSave    bool
	queryFile string
	waitFor   time.Duration
)

var execCmd = &cobra.Command{
	Use:   "exec [QUERY...]",
	Short: "Run queries through the async engine and print the results as TSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		queries := args
		if queryFile != "" {
			b, err := os.ReadFile(queryFile)
			if err != nil {
				return err
			}
			queries = append(queries, string(b))
		}
		if len(queries) == 0 {
			return errors.New("no queries given")
		}
		return execQueries(cmd.Context(), cmd.OutOrStdout(), queries)
	},
}

func init() {
	execCmd.Flags().BoolVar(&noSave, "nosave", false, "discard result rows")
	execCmd.Flags().StringVar(&queryFile, "file", "", "read one more query from a file")
	execCmd.Flags().DurationVar(&waitFor, "timeout", 30*time.Second, "how long to wait for all queries")
}

func execQueries(ctx context.Context, out io.Writer, queries []string) error {
	cfg, err := config.LoadConfig(cfgPath, devMode)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	dialer, err := newDialer(cfg.Database)
	if err != nil {
		return err
	}
	eng := engine.New(dialer, engine.OptionsFromConfig(cfg.Engine, cfg.Runtime.Dev), logger)
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = eng.Close(cctx)
	}()

	f := application.NewFacade(eng, logger)
	db := cfg.Database
	if _, err := f.Init(ctx, db.Host, db.User, db.Password, db.Name, db.Port, db.Connections); err != nil {
		return err
	}

	ids := make([]int64, 0, len(queries))
	for _, q := range queries {
		id, err := submit(f, q, !noSave, cfg.Engine.MaxQueryLength)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	deadline := time.Now().Add(waitFor)
	for _, id := range ids {
		h, err := awaitResult(ctx, f, id, deadline)
		if err != nil {
			return err
		}
		if h == 0 {
			fmt.Fprintf(out, "-- query %d: no result\n", id)
			continue
		}
		err = printResult(out, f, h)
		if ferr := f.FreeResult(h); ferr != nil && err == nil {
			err = ferr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// submit routes text over maxLen through the long query builder.
func submit(f *application.Facade, query string, save bool, maxLen int) (int64, error) {
	if len(query) <= maxLen {
		return f.Submit(query, save)
	}
	h := f.OpenLongQuery()
	for len(query) > 0 {
		n := min(maxLen, len(query))
		if !f.AppendLongQuery(h, query[:n]) {
			_ = f.DiscardLongQuery(h)
			return 0, fmt.Errorf("query of %d bytes: %w", len(query), domain.ErrOutOfSpace)
		}
		query = query[n:]
	}
	return f.SubmitLongQuery(h, save)
}

func awaitResult(ctx context.Context, f *application.Facade, id int64, deadline time.Time) (int, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		h, err := f.FetchAndRelease(id)
		if !errors.Is(err, domain.ErrNotReady) {
			return h, err
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("query %d still running after %s", id, waitFor)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printResult(out io.Writer, f *application.Facade, h int) error {
	var cols []string
	for {
		name, ok := f.FetchField(h)
		if !ok {
			break
		}
		cols = append(cols, name)
	}
	if _, err := fmt.Fprintln(out, strings.Join(cols, "\t")); err != nil {
		return err
	}
	for {
		row, ok := f.FetchRow(h)
		if !ok {
			return nil
		}
		cells := make([]string, len(row))
		for i, c := range row {
			if c == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = *c
			}
		}
		if _, err := fmt.Fprintln(out, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
}
