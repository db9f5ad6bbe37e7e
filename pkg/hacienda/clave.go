package hacienda

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Composición de la clave numérica (50 dígitos):
//
//	506 | ddmmaa | emisor(11) | sucursal(3) terminal(5) tipo(2) consecutivo(10) | situación(1) | código seguridad(8) | DV(1)
//
// Los 49 primeros dígitos forman la base sobre la que se calcula el dígito verificador.
const (
	CountryCode       = "506"
	KeyLength         = 50
	ConsecutiveLength = 20

	issuerWidth   = 11
	branchWidth   = 3
	terminalWidth = 5
	sequenceWidth = 10
	securityWidth = 8
)

// Costa Rica no aplica horario de verano: UTC-6 todo el año.
var costaRica = time.FixedZone("America/Costa_Rica", -6*60*60)

// KeyFormatError indica que un campo de la clave no cabe en su ancho o no es numérico.
// Nunca se trunca: el llamador recibe el error.
type KeyFormatError struct {
	Field  string
	Reason string
}

func (e *KeyFormatError) Error() string {
	return fmt.Sprintf("hacienda: clave inválida en %s: %s", e.Field, e.Reason)
}

// KeyInput datos de entrada para derivar la clave.
type KeyInput struct {
	Branch       string
	Terminal     string
	DocumentType string // código de dos dígitos (01..09)
	Sequence     string
	IssueDate    time.Time
	Issuer       string // identificación del emisor, se admiten guiones
	SecurityCode string
	Situation    string // vacío = normal ("1")
}

// KeyParts desglose de una clave existente.
type KeyParts struct {
	Country      string
	Day          string
	Month        string
	Year         string
	Issuer       string
	Consecutive  string
	Situation    string
	SecurityCode string
	CheckDigit   byte
}

// GenerateKey deriva la clave de 50 dígitos. Es determinista para una misma entrada.
func GenerateKey(in KeyInput) (string, error) {
	if in.IssueDate.IsZero() {
		return "", &KeyFormatError{Field: "issueDate", Reason: "fecha de emisión requerida"}
	}
	consecutive, err := ConsecutiveNumber(in.Branch, in.Terminal, in.DocumentType, in.Sequence)
	if err != nil {
		return "", err
	}
	issuer, err := padDigits("issuer", stripSeparators(in.Issuer), issuerWidth)
	if err != nil {
		return "", err
	}
	situation := in.Situation
	if situation == "" {
		situation = SituationNormal
	}
	if !ValidSituations[situation] {
		return "", &KeyFormatError{Field: "situation", Reason: fmt.Sprintf("situación %q no soportada", situation)}
	}
	if len(in.SecurityCode) != securityWidth || !isDigits(in.SecurityCode) {
		return "", &KeyFormatError{Field: "securityCode", Reason: "se esperan exactamente 8 dígitos"}
	}

	d := in.IssueDate.In(costaRica)
	var sb strings.Builder
	sb.Grow(KeyLength)
	sb.WriteString(CountryCode)
	sb.WriteString(d.Format("020106"))
	sb.WriteString(issuer)
	sb.WriteString(consecutive)
	sb.WriteString(situation)
	sb.WriteString(in.SecurityCode)

	base := sb.String()
	dv, err := CheckDigit(base)
	if err != nil {
		return "", err
	}
	return base + string(dv), nil
}

// ConsecutiveNumber arma el número consecutivo de 20 dígitos:
// sucursal(3) + terminal(5) + tipo de comprobante(2) + consecutivo(10).
func ConsecutiveNumber(branch, terminal, documentType, sequence string) (string, error) {
	b, err := padDigits("branch", branch, branchWidth)
	if err != nil {
		return "", err
	}
	t, err := padDigits("terminal", terminal, terminalWidth)
	if err != nil {
		return "", err
	}
	if len(documentType) != 2 || !isDigits(documentType) {
		return "", &KeyFormatError{Field: "documentType", Reason: fmt.Sprintf("código %q debe tener 2 dígitos", documentType)}
	}
	s, err := padDigits("sequence", sequence, sequenceWidth)
	if err != nil {
		return "", err
	}
	return b + t + documentType + s, nil
}

// CheckDigit calcula el dígito verificador módulo 11 con pesos cíclicos (i mod 6) + 2.
// Residuo 0 o 1 se usa tal cual; en otro caso 11 - residuo.
func CheckDigit(base string) (byte, error) {
	var sum int
	for i := 0; i < len(base); i++ {
		c := base[i]
		if c < '0' || c > '9' {
			return 0, &KeyFormatError{Field: "base", Reason: fmt.Sprintf("carácter no numérico en posición %d", i)}
		}
		sum += int(c-'0') * ((i % 6) + 2)
	}
	r := sum % 11
	if r < 2 {
		return byte('0' + r), nil
	}
	return byte('0' + (11 - r)), nil
}

// ValidateKey verifica longitud, contenido numérico y dígito verificador de una clave recibida.
func ValidateKey(key string) error {
	if len(key) != KeyLength {
		return &KeyFormatError{Field: "documentKey", Reason: fmt.Sprintf("longitud %d, se esperan %d dígitos", len(key), KeyLength)}
	}
	if !isDigits(key) {
		return &KeyFormatError{Field: "documentKey", Reason: "solo se admiten dígitos"}
	}
	expected, err := CheckDigit(key[:KeyLength-1])
	if err != nil {
		return err
	}
	if key[KeyLength-1] != expected {
		return &KeyFormatError{Field: "documentKey", Reason: fmt.Sprintf("dígito verificador esperado %c, recibido %c", expected, key[KeyLength-1])}
	}
	return nil
}

// ParseKey valida la clave y la descompone en sus segmentos.
func ParseKey(key string) (*KeyParts, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return &KeyParts{
		Country:      key[0:3],
		Day:          key[3:5],
		Month:        key[5:7],
		Year:         key[7:9],
		Issuer:       key[9:20],
		Consecutive:  key[20:40],
		Situation:    key[40:41],
		SecurityCode: key[41:49],
		CheckDigit:   key[49],
	}, nil
}

// DocumentType extrae el tipo de comprobante del consecutivo.
func (p *KeyParts) DocumentType() string {
	return p.Consecutive[8:10]
}

func padDigits(field, value string, width int) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", &KeyFormatError{Field: field, Reason: "valor vacío"}
	}
	if !isDigits(v) {
		return "", &KeyFormatError{Field: field, Reason: fmt.Sprintf("%q no es numérico", v)}
	}
	if len(v) > width {
		return "", &KeyFormatError{Field: field, Reason: fmt.Sprintf("%q excede %d dígitos", v, width)}
	}
	return strings.Repeat("0", width-len(v)) + v, nil
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
