package main

import (
	"fmt"

	"github.com/lameck50/backend-kami/internal/cert"
	"github.com/spf13/cobra"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Generate certificates for the gRPC event stream",
	Long: `Create a self-signed CA and server certificate under --dir, reusing any
files that already exist. With --client, also issue a client certificate
for mutual TLS subscribers.

Examples:
  kamictl cert --dir ./certs --host kami.example.org --host 10.0.0.5
  kamictl cert --dir ./certs --client ops-dashboard`,
	RunE: runCert,
}

var (
	certDir    string
	certHosts  []string
	certClient string
)

func init() {
	rootCmd.AddCommand(certCmd)
	certCmd.Flags().StringVar(&certDir, "dir", "certs", "Output directory")
	certCmd.Flags().StringSliceVar(&certHosts, "host", nil, "DNS name or IP for the server certificate (repeatable)")
	certCmd.Flags().StringVar(&certClient, "client", "", "Also issue a client certificate with this common name")
}

func runCert(cmd *cobra.Command, args []string) error {
	svc, err := cert.New(cert.DefaultPaths(certDir), certHosts)
	if err != nil {
		return err
	}

	paths := svc.Paths()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ca:     %s\n", paths.CACert)
	fmt.Fprintf(out, "server: %s\n", paths.ServerCert)

	if certClient != "" {
		certPath, _, err := svc.IssueClient(certClient)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "client: %s\n", certPath)
	}
	return nil
}
