package hka

import (
	"strings"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
)

// ParseInfoBlocks convierte bloques de texto (párrafos) en pares título/valor.
// Cada bloque se normaliza colapsando espacios y se parte por el PRIMER ":".
// Los bloques sin ":" se descartan.
func ParseInfoBlocks(blocks []string) []entity.InfoEntry {
	var out []entity.InfoEntry
	for _, b := range blocks {
		text := strings.Join(strings.Fields(b), " ")
		title, value, ok := strings.Cut(text, ":")
		if !ok {
			continue
		}
		out = append(out, entity.InfoEntry{
			Title: strings.TrimSpace(title),
			Value: strings.TrimSpace(value),
		})
	}
	return out
}
