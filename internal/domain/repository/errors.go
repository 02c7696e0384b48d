package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	// Las operaciones del adapter no lo retornan (un miss es nil, nil);
	// se usa internamente y en los stores.
	ErrNotFound = errors.New("not found")

	// ErrWriteFailed indica que un create/update falló en el store,
	// ya sea por error de transporte o por un payload con código de error.
	ErrWriteFailed = errors.New("write failed")

	// ErrDeleteFailed indica que un delete no se pudo confirmar.
	// Solo se propaga en UnlinkAccount y UseVerificationToken.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrProvisioning indica que la creación de colecciones falló durante
	// la inicialización del adapter.
	ErrProvisioning = errors.New("provisioning failed")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")
)

// OpError describe una operación fallida del adapter.
// El mensaje identifica operación y entidad para correlacionarlo con los
// logs del store; no expone códigos estructurados al caller.
type OpError struct {
	Op     string // "create", "update", "delete", "get", "init"
	Entity string // "user", "account", "session", "verification token", "collection"
	Kind   error  // uno de los sentinels de este paquete
	Err    error  // causa (transporte o payload del store)
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pbauth: error %s %s - see store logs", gerund(e.Op), e.Entity)
	}
	return fmt.Sprintf("pbauth: error %s %s - see store logs: %v", gerund(e.Op), e.Entity, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Is permite errors.Is(err, ErrWriteFailed) y similares.
func (e *OpError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func gerund(op string) string {
	switch op {
	case "create":
		return "creating"
	case "update":
		return "updating"
	case "delete":
		return "deleting"
	case "link":
		return "linking"
	case "unlink":
		return "unlinking"
	case "use":
		return "consuming"
	case "init":
		return "initializing"
	default:
		return op + "ing"
	}
}

// WriteError construye un OpError de escritura.
func WriteError(op, entity string, err error) error {
	return &OpError{Op: op, Entity: entity, Kind: ErrWriteFailed, Err: err}
}

// DeleteError construye un OpError de borrado.
func DeleteError(op, entity string, err error) error {
	return &OpError{Op: op, Entity: entity, Kind: ErrDeleteFailed, Err: err}
}

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsWriteFailed verifica si el error es ErrWriteFailed.
func IsWriteFailed(err error) bool {
	return errors.Is(err, ErrWriteFailed)
}

// IsDeleteFailed verifica si el error es ErrDeleteFailed.
func IsDeleteFailed(err error) bool {
	return errors.Is(err, ErrDeleteFailed)
}
