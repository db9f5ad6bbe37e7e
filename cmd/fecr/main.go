// Comando fecr: utilidades de línea de comandos para comprobantes electrónicos de Hacienda.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fecr",
		Short:         "Herramientas para comprobantes electrónicos de Costa Rica",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(claveCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(certCheckCmd())
	rootCmd.AddCommand(mensajeCmd())
	return rootCmd
}
