package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lightning-worker/go-backend/internal/adapters/rpc"
	"lightning-worker/go-backend/internal/doctor"
)

var errNotReady = errors.New("doctor: not ready")

func newDoctorCommand(opts *globalOptions) *cobra.Command {
	var (
		rpcAddr  string
		rpcToken string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check settings and endpoint reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			resolved, resolveErr := e.resolve(ctx)
			report := doctor.Run(ctx, resolved, doctor.Input{
				SettingsErr: resolveErr,
				RPCAddr:     rpcAddr,
				RPCToken:    rpcToken,
				Timeout:     timeout,
			})

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else {
				for _, c := range report.Checks {
					mark := "ok  "
					if !c.Pass {
						mark = "FAIL"
					}
					if c.Reason != "" {
						fmt.Fprintf(out, "[%s] %s: %s\n", mark, c.Name, c.Reason)
					} else {
						fmt.Fprintf(out, "[%s] %s\n", mark, c.Name)
					}
				}
			}
			if !report.Ready {
				return errNotReady
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rpcAddr, "rpc-addr", rpc.DefaultRPCAddr, "daemon RPC address to probe; empty skips the check")
	cmd.Flags().StringVar(&rpcToken, "rpc-token", os.Getenv("LNW_RPC_TOKEN"), "daemon RPC token")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-check timeout")
	return cmd
}
