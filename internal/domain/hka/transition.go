package hka

import (
	"time"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
)

// Event resultado observado de una interacción con HKA (o de un usuario).
type Event interface{ event() }

// Enqueue la factura se contabilizó y debe enviarse.
type Enqueue struct{}

// SendAccepted /Enviar devolvió estatus true.
type SendAccepted struct {
	RemoteDocNumber string
	XML             []byte
	At              time.Time
}

// SendRejected /Enviar respondió con estatus false.
type SendRejected struct{ Message string }

// SendFailed error de transporte, autenticación o inesperado al enviar.
type SendFailed struct{ Message string }

// ArtifactDownloaded /DescargaArchivo devolvió un archivo con codigo 0.
type ArtifactDownloaded struct {
	Kind entity.ArtifactKind
	Data []byte
}

// Requeue reenvío manual de una factura rechazada.
type Requeue struct{}

func (Enqueue) event()            {}
func (SendAccepted) event()       {}
func (SendRejected) event()       {}
func (SendFailed) event()         {}
func (ArtifactDownloaded) event() {}
func (Requeue) event()            {}

// Effect efecto lateral que el orquestador ejecuta junto al nuevo estado.
type Effect interface{ effect() }

// StoreArtifact guardar un archivo como adjunto de la factura.
type StoreArtifact struct {
	Kind entity.ArtifactKind
	Data []byte
}

func (StoreArtifact) effect() {}

// Transition aplica un evento al estado HKA de una factura. Es pura: el
// llamador persiste el estado devuelto y ejecuta los efectos en la misma
// unidad de trabajo. Eventos que no aplican al estado actual no cambian nada.
func Transition(s entity.HKAState, ev Event, maxRetries int) (entity.HKAState, []Effect) {
	switch e := ev.(type) {
	case Enqueue:
		if s.Status == entity.HKAStatusNone {
			s.Status = entity.HKAStatusToSend
		}
		return s, nil

	case SendAccepted:
		if s.Status != entity.HKAStatusToSend {
			return s, nil
		}
		at := e.At
		s.Status = entity.HKAStatusSent
		s.CPENumber = e.RemoteDocNumber
		s.SentAt = &at
		s.ErrorMessage = ""
		s.RetryCount = 0
		if len(e.XML) == 0 {
			return s, nil
		}
		s.XMLFile = true
		return s, []Effect{StoreArtifact{Kind: entity.ArtifactXML, Data: e.XML}}

	case SendRejected:
		if s.Status != entity.HKAStatusToSend {
			return s, nil
		}
		s.ErrorMessage = e.Message
		s.RetryCount++
		s.Status = entity.HKAStatusRejected
		if s.RetryCount < maxRetries {
			s.Status = entity.HKAStatusToSend
		}
		return s, nil

	case SendFailed:
		if s.Status != entity.HKAStatusToSend {
			return s, nil
		}
		s.ErrorMessage = e.Message
		s.RetryCount++
		if s.RetryCount >= maxRetries {
			s.Status = entity.HKAStatusRejected
		}
		return s, nil

	case ArtifactDownloaded:
		if s.Status != entity.HKAStatusSent || s.HasArtifact(e.Kind) || len(e.Data) == 0 {
			return s, nil
		}
		switch e.Kind {
		case entity.ArtifactXML:
			s.XMLFile = true
		case entity.ArtifactPDF:
			s.PDFFile = true
		case entity.ArtifactCDR:
			s.CDRFile = true
		default:
			return s, nil
		}
		return s, []Effect{StoreArtifact{Kind: e.Kind, Data: e.Data}}

	case Requeue:
		if s.Status != entity.HKAStatusRejected {
			return s, nil
		}
		s.Status = entity.HKAStatusToSend
		s.RetryCount = 0
		s.ErrorMessage = ""
		return s, nil
	}
	return s, nil
}

// Exhausted informa si el estado es un rechazo terminal.
func Exhausted(s entity.HKAState, maxRetries int) bool {
	return s.Status == entity.HKAStatusRejected && s.RetryCount >= maxRetries
}
