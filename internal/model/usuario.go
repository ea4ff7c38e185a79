package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TipoUsuario is the closed set of user kinds in the workshop.
// It replaces free-form string comparisons: every boundary that branches on
// the user kind must switch exhaustively over these constants.
type TipoUsuario string

const (
	TipoCliente     TipoUsuario = "cliente"
	TipoMecanico    TipoUsuario = "mecanico"
	TipoSecretaria  TipoUsuario = "secretaria"
	TipoPropietario TipoUsuario = "propietario"
)

// ParseTipoUsuario validates a raw string coming from a token or request.
func ParseTipoUsuario(s string) (TipoUsuario, error) {
	switch TipoUsuario(s) {
	case TipoCliente, TipoMecanico, TipoSecretaria, TipoPropietario:
		return TipoUsuario(s), nil
	default:
		return "", fmt.Errorf("tipo de usuario desconocido: %q", s)
	}
}

// EsPersonal reports whether the user belongs to workshop staff
// (anyone allowed to record payments as recibido_por).
func (t TipoUsuario) EsPersonal() bool {
	switch t {
	case TipoSecretaria, TipoPropietario, TipoMecanico:
		return true
	case TipoCliente:
		return false
	}
	return false
}

// Usuario stores system users: workshop staff and clients.
type Usuario struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Nombre       string    `gorm:"not null"`
	Email        *string
	Telefono     *string     `gorm:"type:varchar(20)"`
	PasswordHash string      `gorm:"not null"`
	Tipo         TipoUsuario `gorm:"type:varchar(20);not null"`
	Activo       bool        `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
