package signer

import (
	"bytes"
	"encoding/xml"
	"maps"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

const namespaceXML = "http://www.w3.org/XML/1998/namespace"

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;",
		"\t", "&#x9;", "\n", "&#xA;", "\r", "&#xD;")
)

// CanonicalizeInclusive aplica C14N 1.0 inclusivo (sin comentarios) tomando el como ápice
// del subconjunto. inherited son los namespaces en alcance sobre el (prefijo → URI, "" es el
// default); en C14N inclusivo todos se declaran en el ápice.
func CanonicalizeInclusive(el *etree.Element, inherited map[string]string) []byte {
	var buf bytes.Buffer
	scope := maps.Clone(inherited)
	if scope == nil {
		scope = map[string]string{}
	}
	writeInclusive(&buf, el, scope, map[string]string{})
	return buf.Bytes()
}

// CanonicalizeExclusive aplica Exclusive C14N 1.0 a un documento serializado.
func CanonicalizeExclusive(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// InScopeNamespaces namespaces declarados en el y sus ancestros; el más cercano gana.
func InScopeNamespaces(el *etree.Element) map[string]string {
	ns := map[string]string{}
	var chain []*etree.Element
	for e := el; e != nil; e = e.Parent() {
		chain = append(chain, e)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for _, a := range chain[i].Attr {
			if prefix, ok := namespaceDecl(a); ok {
				ns[prefix] = a.Value
			}
		}
	}
	return ns
}

func namespaceDecl(a etree.Attr) (string, bool) {
	switch {
	case a.Space == "" && a.Key == "xmlns":
		return "", true
	case a.Space == "xmlns":
		return a.Key, true
	}
	return "", false
}

func writeInclusive(buf *bytes.Buffer, el *etree.Element, scope, rendered map[string]string) {
	scope = maps.Clone(scope)
	var attrs []etree.Attr
	for _, a := range el.Attr {
		if prefix, ok := namespaceDecl(a); ok {
			scope[prefix] = a.Value
			continue
		}
		attrs = append(attrs, a)
	}

	// Un namespace se declara si el ancestro de salida no lo dejó ya con el mismo valor.
	// xmlns="" solo aparece para anular un default no vacío.
	out := maps.Clone(rendered)
	var prefixes []string
	for prefix, uri := range scope {
		prev, seen := rendered[prefix]
		if prefix == "" && uri == "" {
			if seen && prev != "" {
				prefixes = append(prefixes, prefix)
				out[prefix] = ""
			}
			continue
		}
		if !seen || prev != uri {
			prefixes = append(prefixes, prefix)
			out[prefix] = uri
		}
	}
	slices.Sort(prefixes)

	attrURI := func(a etree.Attr) string {
		switch a.Space {
		case "":
			return ""
		case "xml":
			return namespaceXML
		}
		return scope[a.Space]
	}
	slices.SortFunc(attrs, func(a, b etree.Attr) int {
		if c := strings.Compare(attrURI(a), attrURI(b)); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})

	tag := el.FullTag()
	buf.WriteString("<" + tag)
	for _, prefix := range prefixes {
		name := "xmlns"
		if prefix != "" {
			name += ":" + prefix
		}
		buf.WriteString(" " + name + `="` + attrEscaper.Replace(scope[prefix]) + `"`)
	}
	for _, a := range attrs {
		buf.WriteString(" " + a.FullKey() + `="` + attrEscaper.Replace(a.Value) + `"`)
	}
	buf.WriteByte('>')

	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.Element:
			writeInclusive(buf, t, scope, out)
		case *etree.CharData:
			buf.WriteString(textEscaper.Replace(t.Data))
		case *etree.ProcInst:
			buf.WriteString("<?" + t.Target)
			if t.Inst != "" {
				buf.WriteString(" " + t.Inst)
			}
			buf.WriteString("?>")
		}
	}
	buf.WriteString("</" + tag + ">")
}
