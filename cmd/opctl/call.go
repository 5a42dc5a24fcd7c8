package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"opgate/client"
)

type unaryFunc func(ctx context.Context, c *client.Client, subpath string, input any) (any, error)

type streamFunc func(ctx context.Context, c *client.Client, subpath string, input any) (*client.Stream[any], error)

// parseVars reads --vars; an empty value sends JSON null.
func parseVars(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	var v json.RawMessage
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("--vars is not valid JSON: %w", err)
	}
	return v, nil
}

// printJSON writes v as one JSON line.
func printJSON(w io.Writer, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", line)
	return err
}

func newUnaryCmd(a *app, use, short string, call unaryFunc) *cobra.Command {
	var vars string
	cmd := &cobra.Command{
		Use:   use + " <operation>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := parseVars(vars)
			if err != nil {
				return err
			}
			result, err := call(cmd.Context(), a.client, args[0], input)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&vars, "vars", "", "operation variables as JSON")
	return cmd
}

// newStreamCmd prints one line per update until the stream ends or the
// process is interrupted. Failed updates go to stderr and the stream goes on.
func newStreamCmd(a *app, use, short string, open streamFunc) *cobra.Command {
	var vars string
	cmd := &cobra.Command{
		Use:   use + " <operation>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := parseVars(vars)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stream, err := open(ctx, a.client, args[0], input)
			if err != nil {
				return err
			}
			for result, err := range stream.All() {
				if err != nil {
					a.logger.Debug("stream item failed", zap.String("operation", args[0]), zap.Error(err))
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					continue
				}
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&vars, "vars", "", "operation variables as JSON")
	return cmd
}
