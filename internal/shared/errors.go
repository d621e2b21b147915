package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPermissionDenied indicates the caller lacks the staff capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage converts internal errors into a message suitable for
// rendering to the end user.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Registro não encontrado."
	case errors.Is(err, ErrPermissionDenied):
		return "Você não tem permissão para realizar esta ação."
	case errors.Is(err, ErrInvalidCredentials):
		return "Usuário ou senha incorretos."
	default:
		return "Algo deu errado. Tente novamente."
	}
}
