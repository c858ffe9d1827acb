package dto

import "time"

// HKAStatusResponse estado de integración de una factura para GET /api/hka/invoices/:id.
type HKAStatusResponse struct {
	InvoiceID    string               `json:"invoice_id"`
	Name         string               `json:"name"`
	Status       string               `json:"status"`
	CPENumber    string               `json:"cpe_number,omitempty"`
	SentAt       *time.Time           `json:"sent_at,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
	RetryCount   int                  `json:"retry_count"`
	Exhausted    bool                 `json:"exhausted"`
	Artifacts    HKAArtifactFlags     `json:"artifacts"`
	Attachments  []AttachmentResponse `json:"attachments"`
}

// HKAArtifactFlags artefactos ya descargados.
type HKAArtifactFlags struct {
	XML bool `json:"xml"`
	PDF bool `json:"pdf"`
	CDR bool `json:"cdr"`
}

// AttachmentResponse metadatos de un adjunto.
type AttachmentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// PassReportResponse resultado de una pasada de envío o descarga.
type PassReportResponse struct {
	Pass       string `json:"pass"`
	Processed  int    `json:"processed"`
	Accepted   int    `json:"accepted,omitempty"`
	Rejected   int    `json:"rejected,omitempty"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Downloaded int    `json:"downloaded,omitempty"`
	Missing    int    `json:"missing,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// HKAStateResponse estado resultante de una operación manual sobre la factura.
type HKAStateResponse struct {
	InvoiceID    string     `json:"invoice_id"`
	Status       string     `json:"status"`
	CPENumber    string     `json:"cpe_number,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`
}
