package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/pbauth/internal/observability/logger"
)

func (a *app) provisionCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Crea o reconcilia las colecciones del adapter en el store configurado",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			m, err := a.serveMetrics()
			if err != nil {
				return err
			}
			client, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			ad, cleanup, err := a.newAdapter(client, m)
			if err != nil {
				return err
			}
			defer cleanup()

			start := time.Now()
			if err := ad.Ready(ctx); err != nil {
				return err
			}
			for _, o := range ad.Outcomes() {
				id := ""
				if o.Collection != nil {
					id = o.Collection.ID
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s %-20s %-10s %s\n", o.Kind, o.Name, o.Status, id)
			}
			a.log.Info("provision done", logger.Duration(time.Since(start)))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Tiempo máximo de espera")
	return cmd
}
