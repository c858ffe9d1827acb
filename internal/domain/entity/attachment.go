package entity

import "time"

// ArtifactKind tipo de archivo que devuelve HKA.
type ArtifactKind string

const (
	ArtifactXML ArtifactKind = "XML"
	ArtifactPDF ArtifactKind = "PDF"
	ArtifactCDR ArtifactKind = "CDR"
)

// ArtifactKinds orden en que se descargan los artefactos.
var ArtifactKinds = []ArtifactKind{ArtifactXML, ArtifactPDF, ArtifactCDR}

// Extension devuelve la extensión de archivo del artefacto.
func (k ArtifactKind) Extension() string {
	switch k {
	case ArtifactXML:
		return "xml"
	case ArtifactPDF:
		return "pdf"
	case ArtifactCDR:
		return "zip"
	}
	return "bin"
}

// MimeType devuelve el tipo MIME con el que se almacena el artefacto.
func (k ArtifactKind) MimeType() string {
	switch k {
	case ArtifactXML:
		return "application/xml"
	case ArtifactPDF:
		return "application/pdf"
	case ArtifactCDR:
		return "application/zip"
	}
	return "application/octet-stream"
}

// Attachment archivo binario asociado a una factura.
type Attachment struct {
	ID        string
	InvoiceID string
	Name      string // {invoice.Name}.{ext}
	MimeType  string
	Data      []byte
	CreatedAt time.Time
}
