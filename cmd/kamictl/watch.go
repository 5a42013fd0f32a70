package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	grpcclient "github.com/lameck50/backend-kami/internal/grpc/client"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live event stream over gRPC",
	Long: `Subscribe to the server event stream and print each event as a line.
The stream reconnects until interrupted.

Examples:
  kamictl watch --server localhost:9090 --token "$(kamictl token --id ... --role supervisor)"`,
	RunE: runWatch,
}

var (
	watchServer   string
	watchToken    string
	watchTLS      bool
	watchCAFile   string
	watchCertFile string
	watchKeyFile  string
	watchSNI      string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchServer, "server", "localhost:9090", "gRPC server address")
	watchCmd.Flags().StringVar(&watchToken, "token", envOr("KAMI_TOKEN", ""), "Access token")
	watchCmd.Flags().BoolVar(&watchTLS, "tls", false, "Use TLS")
	watchCmd.Flags().StringVar(&watchCAFile, "ca-file", "", "CA certificate (default: system roots)")
	watchCmd.Flags().StringVar(&watchCertFile, "cert-file", "", "Client certificate for mutual TLS")
	watchCmd.Flags().StringVar(&watchKeyFile, "key-file", "", "Client key for mutual TLS")
	watchCmd.Flags().StringVar(&watchSNI, "server-name", "", "Override the TLS server name")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchToken == "" {
		return fmt.Errorf("--token or KAMI_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := grpcclient.NewClient(watchServer, watchToken, &grpcclient.TLSConfig{
		Enabled:            watchTLS,
		CertFile:           watchCertFile,
		KeyFile:            watchKeyFile,
		CAFile:             watchCAFile,
		ServerNameOverride: watchSNI,
	})

	out := cmd.OutOrStdout()
	return c.Run(ctx, func(env grpcclient.Envelope) {
		fmt.Fprintf(out, "%s %s %s\n", env.At.Format("15:04:05"), env.Event, env.Data)
	})
}
