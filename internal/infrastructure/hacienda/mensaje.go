package hacienda

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Valores de <Mensaje> en la respuesta de Hacienda.
const (
	MensajeAceptado        = "1"
	MensajeAceptadoParcial = "2"
	MensajeRechazado       = "3"
)

// MensajeHacienda respuesta firmada que Hacienda devuelve en respuesta-xml.
type MensajeHacienda struct {
	XMLName                  xml.Name `xml:"MensajeHacienda"`
	Clave                    string   `xml:"Clave"`
	NombreEmisor             string   `xml:"NombreEmisor"`
	TipoIdentificacionEmisor string   `xml:"TipoIdentificacionEmisor"`
	NumeroCedulaEmisor       string   `xml:"NumeroCedulaEmisor"`
	NombreReceptor           string   `xml:"NombreReceptor"`
	Mensaje                  string   `xml:"Mensaje"`
	DetalleMensaje           string   `xml:"DetalleMensaje"`
	MontoTotalImpuesto       string   `xml:"MontoTotalImpuesto"`
	TotalFactura             string   `xml:"TotalFactura"`
}

// Accepted indica aceptación total o parcial.
func (m *MensajeHacienda) Accepted() bool {
	return m.Mensaje == MensajeAceptado || m.Mensaje == MensajeAceptadoParcial
}

// DecodeMensaje interpreta el XML de respuesta. Acepta UTF-8 y las codificaciones
// latinas que aún aparecen en respuestas antiguas (ISO-8859-1, windows-1252).
func DecodeMensaje(data []byte) (*MensajeHacienda, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	var m MensajeHacienda
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("hacienda: decodificar MensajeHacienda: %w", err)
	}
	m.DetalleMensaje = strings.TrimSpace(m.DetalleMensaje)
	return &m, nil
}

// DecodeMensajeBase64 atajo para el campo respuesta-xml del estado.
func DecodeMensajeBase64(b64 string) (*MensajeHacienda, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("hacienda: respuesta-xml no es base64: %w", err)
	}
	return DecodeMensaje(raw)
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "":
		return input, nil
	case "iso-8859-1", "iso8859-1", "latin1":
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
	}
	return nil, fmt.Errorf("codificación no soportada: %s", label)
}
