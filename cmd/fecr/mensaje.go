package main

import (
	"fmt"

	"github.com/spf13/cobra"

	infrahacienda "github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda"
)

func mensajeCmd() *cobra.Command {
	var isBase64 bool

	cmd := &cobra.Command{
		Use:   "mensaje [archivo|-]",
		Short: "Decodifica el MensajeHacienda devuelto en respuesta-xml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var m *infrahacienda.MensajeHacienda
			if isBase64 {
				m, err = infrahacienda.DecodeMensajeBase64(string(data))
			} else {
				m, err = infrahacienda.DecodeMensaje(data)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "clave:       %s\n", m.Clave)
			fmt.Fprintf(out, "emisor:      %s\n", m.NombreEmisor)
			fmt.Fprintf(out, "receptor:    %s\n", m.NombreReceptor)
			fmt.Fprintf(out, "mensaje:     %s (aceptado: %s)\n", m.Mensaje, yesNo(m.Accepted()))
			if m.TotalFactura != "" {
				fmt.Fprintf(out, "total:       %s\n", m.TotalFactura)
			}
			if m.DetalleMensaje != "" {
				fmt.Fprintf(out, "detalle:     %s\n", m.DetalleMensaje)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&isBase64, "base64", false, "la entrada viene codificada en base64")
	return cmd
}
