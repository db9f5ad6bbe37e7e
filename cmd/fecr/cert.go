package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda/signer"
)

func certCheckCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "cert-check [archivo.p12]",
		Short: "Inspecciona un certificado de firma y verifica su compatibilidad con Hacienda",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cert, err := signer.DecodeP12(data, password)
			if err != nil {
				return err
			}
			info := signer.Inspect(cert.Leaf)
			now := time.Now()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sujeto:      %s\n", info.SubjectCN)
			fmt.Fprintf(out, "emisor:      %s (%s)\n", info.IssuerCN, info.IssuerOrg)
			fmt.Fprintf(out, "serie:       %s\n", info.SerialNumber)
			fmt.Fprintf(out, "vigencia:    %s a %s\n", info.ValidFrom.Format(time.DateOnly), info.ValidTo.Format(time.DateOnly))
			fmt.Fprintf(out, "sha256:      %s\n", info.FingerprintSHA256)
			fmt.Fprintf(out, "usos:        %s\n", strings.Join(info.KeyUsage, ", "))
			fmt.Fprintf(out, "vigente:     %s\n", yesNo(!now.Before(info.ValidFrom) && now.Before(info.ValidTo)))
			fmt.Fprintf(out, "compatible:  %s\n", yesNo(info.HaciendaCompatible))
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "contraseña del .p12")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "sí"
	}
	return "no"
}
