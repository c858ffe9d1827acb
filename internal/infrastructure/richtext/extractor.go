// Package richtext convierte el texto enriquecido de las notas de la factura
// en bloques de texto plano (uno por párrafo o salto de línea).
package richtext

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/unicode/norm"
)

var (
	voidTag = regexp.MustCompile(`(?i)<(br|hr|img)(\s[^>]*?)?\s*/?>`)
	anyTag  = regexp.MustCompile(`<[^>]*>`)

	blockTags = map[string]bool{
		"p": true, "div": true, "li": true, "tr": true, "blockquote": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	}

	htmlEntities = map[string]string{
		"nbsp": " ", "aacute": "á", "eacute": "é", "iacute": "í", "oacute": "ó", "uacute": "ú",
		"ntilde": "ñ", "Aacute": "Á", "Eacute": "É", "Iacute": "Í", "Oacute": "Ó", "Uacute": "Ú",
		"Ntilde": "Ñ", "uuml": "ü", "deg": "°", "ordm": "º", "ordf": "ª",
	}
)

// ExtractBlocks devuelve los bloques de texto del HTML en orden de aparición,
// normalizados a NFC. Si el HTML no es XML válido se degrada a quitar etiquetas.
func ExtractBlocks(html string) []string {
	html = strings.TrimSpace(html)
	if html == "" {
		return nil
	}

	doc := etree.NewDocument()
	doc.ReadSettings.Entity = htmlEntities
	if err := doc.ReadFromString("<root>" + voidTag.ReplaceAllString(html, "<$1/>") + "</root>"); err != nil {
		return plainBlocks(html)
	}

	w := &blockWriter{}
	w.walk(doc.Root())
	w.flush()
	return w.out
}

type blockWriter struct {
	cur strings.Builder
	out []string
}

func (w *blockWriter) walk(el *etree.Element) {
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			w.cur.WriteString(t.Data)
		case *etree.Element:
			tag := strings.ToLower(t.Tag)
			switch {
			case tag == "br":
				w.flush()
			case blockTags[tag]:
				w.flush()
				w.walk(t)
				w.flush()
			default:
				w.walk(t)
			}
		}
	}
}

func (w *blockWriter) flush() {
	s := strings.TrimSpace(norm.NFC.String(w.cur.String()))
	w.cur.Reset()
	if s != "" {
		w.out = append(w.out, s)
	}
}

func plainBlocks(html string) []string {
	text := anyTag.ReplaceAllString(voidTag.ReplaceAllString(html, "\n"), "\n")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(norm.NFC.String(line)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
