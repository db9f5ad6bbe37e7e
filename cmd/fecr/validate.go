package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	domhacienda "github.com/jhoicas/hacienda-api/internal/domain/hacienda"
	infrahacienda "github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda"
	pkghacienda "github.com/jhoicas/hacienda-api/pkg/hacienda"
)

func validateCmd() *cobra.Command {
	var printXML bool

	cmd := &cobra.Command{
		Use:   "validate [archivo.json|-]",
		Short: "Valida el cuerpo de emisión y muestra los totales calculados",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			raw, err := domhacienda.Normalize(body)
			if err != nil {
				return err
			}
			doc, err := domhacienda.Validate(raw)
			if err != nil {
				return err
			}
			typeCode, ok := doc.TypeCode()
			if !ok {
				return fmt.Errorf("documentName %q no soportado", doc.DocumentName)
			}

			out := cmd.OutOrStdout()
			s := domhacienda.Totals(doc)
			fmt.Fprintf(out, "comprobante: %s (%s)\n", doc.DocumentName, typeCode)
			fmt.Fprintf(out, "emisor:      %s\n", doc.Emitter.FullName)
			if name := doc.ReceiverName(); name != "" {
				fmt.Fprintf(out, "receptor:    %s\n", name)
			}
			fmt.Fprintf(out, "líneas:      %d\n", len(s.Lines))
			fmt.Fprintf(out, "venta neta:  %s\n", domhacienda.FormatAmount(s.TotalVentaNeta))
			fmt.Fprintf(out, "impuesto:    %s\n", domhacienda.FormatAmount(s.TotalImpuesto))
			fmt.Fprintf(out, "total:       %s\n", domhacienda.FormatAmount(s.TotalComprobante))

			if !printXML {
				return nil
			}
			issuedAt := time.Now()
			consecutive, err := pkghacienda.ConsecutiveNumber(doc.Branch, doc.Terminal, typeCode, doc.ConsecutiveIdentifier)
			if err != nil {
				return err
			}
			key := doc.DocumentKey
			if key == "" {
				key, err = pkghacienda.GenerateKey(pkghacienda.KeyInput{
					Branch:       doc.Branch,
					Terminal:     doc.Terminal,
					DocumentType: typeCode,
					Sequence:     doc.ConsecutiveIdentifier,
					IssueDate:    issuedAt,
					Issuer:       doc.Emitter.Identifier.ID,
					SecurityCode: doc.SecurityCode,
					Situation:    doc.CESituation,
				})
				if err != nil {
					return err
				}
			}
			xmlDoc, err := infrahacienda.NewXMLBuilderService().Build(&infrahacienda.BuildContext{
				Document:    doc,
				Key:         key,
				Consecutive: consecutive,
				IssuedAt:    issuedAt,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			_, err = out.Write(xmlDoc)
			return err
		},
	}

	cmd.Flags().BoolVar(&printXML, "xml", false, "imprime el XML sin firma")
	return cmd
}

// readInput lee un archivo o la entrada estándar con "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
