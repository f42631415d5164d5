package main

import (
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mscrnt/cantiming/pkg/cert"
	"github.com/spf13/cobra"
)

func certCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Certificate management",
		Long:  "Create the CA and the server and client certificates used by 'serve' and 'remote' for mutual TLS",
	}

	cmd.AddCommand(certInitCmd())
	cmd.AddCommand(certIssueCmd())
	cmd.AddCommand(certVerifyCmd())

	return cmd
}

// defaultCAPath returns ~/.cantiming/ca
func defaultCAPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cantiming", "ca"), nil
}

func certInitCmd() *cobra.Command {
	var (
		caPath  string
		force   bool
		keyBits int
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize certificate authority",
		Long: `Initialize a certificate authority (CA) for the solver service.

This command creates a self-signed CA certificate and private key that will be
used to sign server and client certificates.

Examples:
  # Initialize CA in default location
  cantiming cert init

  # Initialize CA in custom location
  cantiming cert init --ca-path /path/to/ca

  # Force overwrite existing CA
  cantiming cert init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if caPath == "" {
				var err error
				if caPath, err = defaultCAPath(); err != nil {
					return err
				}
			}

			if err := os.MkdirAll(caPath, 0o700); err != nil {
				return fmt.Errorf("failed to create CA directory: %w", err)
			}

			certPath := filepath.Join(caPath, "ca.crt")
			keyPath := filepath.Join(caPath, "ca.key")

			if !force {
				if _, err := os.Stat(certPath); err == nil {
					return fmt.Errorf("CA certificate already exists at %s (use --force to overwrite)", certPath)
				}
			}

			issuer, err := cert.NewIssuer(keyBits)
			if err != nil {
				return fmt.Errorf("failed to create CA: %w", err)
			}

			if err := issuer.SaveCA(certPath, keyPath); err != nil {
				return fmt.Errorf("failed to save CA: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Certificate Authority initialized successfully")
			fmt.Fprintf(out, "CA Certificate: %s\n", certPath)
			fmt.Fprintf(out, "CA Private Key: %s\n", keyPath)
			fmt.Fprintln(out, "\nIMPORTANT: Keep the private key secure and backed up!")

			return nil
		},
	}

	cmd.Flags().StringVar(&caPath, "ca-path", "", "Path to CA directory")
	cmd.Flags().BoolVar(&force, "force", false, "Force overwrite existing CA")
	cmd.Flags().IntVar(&keyBits, "bits", cert.DefaultKeyBits, "RSA key size")

	return cmd
}

func certIssueCmd() *cobra.Command {
	var (
		server    string
		client    string
		output    string
		keyOutput string
		caPath    string
		validFor  string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a server or client certificate",
		Long: `Issue a certificate signed by the CA.

A server certificate is valid for the comma separated host names and IP
addresses given to --server. A client certificate carries the name given
to --client.

Examples:
  # Server certificate for a bench machine
  cantiming cert issue --server bench-01,10.0.0.5 -o server.crt --key server.key

  # Client certificate valid for 90 days
  cantiming cert issue --client alice --valid 90d -o client.crt --key client.key`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (server == "") == (client == "") {
				return fmt.Errorf("exactly one of --server or --client must be specified")
			}

			validity, err := parseDuration(validFor)
			if err != nil {
				return fmt.Errorf("invalid validity period: %w", err)
			}

			if caPath == "" {
				if caPath, err = defaultCAPath(); err != nil {
					return err
				}
			}

			issuer, err := cert.LoadCA(filepath.Join(caPath, "ca.crt"), filepath.Join(caPath, "ca.key"))
			if err != nil {
				return fmt.Errorf("failed to load CA (run 'cantiming cert init' first): %w", err)
			}

			var (
				certificate *cert.Certificate
				kind        string
			)
			if server != "" {
				kind = "server"
				certificate, err = issuer.IssueServer(splitHosts(server), validity)
			} else {
				kind = "client"
				certificate, err = issuer.IssueClient(client, validity)
			}
			if err != nil {
				return fmt.Errorf("failed to issue certificate: %w", err)
			}

			if output == "" {
				output = kind + ".crt"
			}
			if keyOutput == "" {
				keyOutput = strings.TrimSuffix(output, filepath.Ext(output)) + ".key"
			}

			if err := certificate.Save(output, keyOutput); err != nil {
				return fmt.Errorf("failed to save certificate: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Issued %s certificate\n", kind)
			fmt.Fprintf(out, "Certificate: %s\n", output)
			fmt.Fprintf(out, "Private Key: %s\n", keyOutput)

			fmt.Fprintf(out, "\nCertificate Details:\n")
			fmt.Fprintf(out, "  Subject: %s\n", certificate.Subject)
			fmt.Fprintf(out, "  Serial: %s\n", certificate.SerialNumber)
			if len(certificate.DNSNames) > 0 || len(certificate.IPAddresses) > 0 {
				fmt.Fprintf(out, "  Hosts: %s\n", strings.Join(hostList(certificate.Certificate), ", "))
			}
			fmt.Fprintf(out, "  Valid From: %s\n", certificate.NotBefore.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "  Valid Until: %s\n", certificate.NotAfter.Format("2006-01-02 15:04:05"))

			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Issue a server certificate for these hosts (comma separated)")
	cmd.Flags().StringVar(&client, "client", "", "Issue a client certificate with this name")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output certificate file (default server.crt or client.crt)")
	cmd.Flags().StringVar(&keyOutput, "key", "", "Output private key file (default next to the certificate)")
	cmd.Flags().StringVar(&caPath, "ca-path", "", "Path to CA directory")
	cmd.Flags().StringVar(&validFor, "valid", "365d", "Validity period (e.g. 90d, 8760h)")

	return cmd
}

func certVerifyCmd() *cobra.Command {
	var caPath string

	cmd := &cobra.Command{
		Use:   "verify [certificate]",
		Short: "Verify a certificate against the CA",
		Long: `Verify that a server or client certificate was signed by the CA and is
currently valid.

Examples:
  # Verify a certificate
  cantiming cert verify server.crt

  # Verify with custom CA path
  cantiming cert verify client.crt --ca-path /path/to/ca`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if caPath == "" {
				if caPath, err = defaultCAPath(); err != nil {
					return err
				}
			}

			ca, err := cert.LoadCertificate(filepath.Join(caPath, "ca.crt"))
			if err != nil {
				return fmt.Errorf("failed to load CA: %w", err)
			}
			c, err := cert.LoadCertificate(args[0])
			if err != nil {
				return err
			}

			if err := cert.Verify(ca, c, x509.ExtKeyUsageAny); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Certificate is VALID")
			fmt.Fprintf(out, "  Subject: %s\n", c.Subject)
			fmt.Fprintf(out, "  Usage: %s\n", usageString(c))
			if hosts := hostList(c); len(hosts) > 0 {
				fmt.Fprintf(out, "  Hosts: %s\n", strings.Join(hosts, ", "))
			}
			fmt.Fprintf(out, "  Valid Until: %s\n", c.NotAfter.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVar(&caPath, "ca-path", "", "Path to CA directory")

	return cmd
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func hostList(c *x509.Certificate) []string {
	hosts := append([]string(nil), c.DNSNames...)
	for _, ip := range c.IPAddresses {
		hosts = append(hosts, ip.String())
	}
	return hosts
}

func usageString(c *x509.Certificate) string {
	var usages []string
	for _, u := range c.ExtKeyUsage {
		switch u {
		case x509.ExtKeyUsageServerAuth:
			usages = append(usages, "server")
		case x509.ExtKeyUsageClientAuth:
			usages = append(usages, "client")
		}
	}
	if len(usages) == 0 {
		return "unspecified"
	}
	return strings.Join(usages, ", ")
}
