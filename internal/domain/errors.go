package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
)

// Errores de integración con HKA. Se envuelven con fmt.Errorf("...: %w") y se
// distinguen con errors.Is en el orquestador y en los handlers.
var (
	// ErrConfiguration faltan credenciales, RUC o endpoint; no se reintenta.
	ErrConfiguration = errors.New("configuración HKA incompleta")
	// ErrAuthentication falló /Autenticacion (red o respuesta inválida).
	ErrAuthentication = errors.New("autenticación HKA fallida")
	// ErrTransport red, timeout, status no 2xx o cuerpo ilegible en /Enviar o /DescargaArchivo.
	ErrTransport = errors.New("error de transporte HKA")
	// ErrRemoteRejection HKA respondió bien formado pero rechazó el documento.
	ErrRemoteRejection = errors.New("documento rechazado por HKA")
)
