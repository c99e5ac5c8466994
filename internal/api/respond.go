package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/service"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// errorStatuses is checked in order; the first sentinel matched wins
var errorStatuses = []struct {
	err     error
	code    int
	message string
}{
	{service.ErrUnauthenticated, http.StatusUnauthorized, "Sessão inválida. Entre novamente."},
	{service.ErrValidation, http.StatusBadRequest, "Dados inválidos."},
	{service.ErrForbidden, http.StatusForbidden, "Você não tem permissão para esta ação."},
	{service.ErrNotFound, http.StatusNotFound, "Registro não encontrado."},
	{service.ErrAlreadySubmitted, http.StatusConflict, "Você já enviou este post."},
	{service.ErrDeadlinePassed, http.StatusConflict, "O prazo deste post já encerrou."},
	{service.ErrConfirmationRequired, http.StatusConflict, "Digite " + service.ConfirmationWord + " para confirmar a exclusão."},
	{service.ErrConflict, http.StatusConflict, "Já existe um registro com estes dados."},
	{service.ErrRateLimited, http.StatusTooManyRequests, "Muitas tentativas. Aguarde alguns minutos."},
}

// statusOf maps a service error to its HTTP status, message and detail
func statusOf(err error) (int, errorResponse) {
	for _, s := range errorStatuses {
		if errors.Is(err, s.err) {
			detail := strings.TrimPrefix(err.Error(), s.err.Error()+": ")
			if detail == s.err.Error() {
				detail = ""
			}
			return s.code, errorResponse{Error: s.message, Detail: detail}
		}
	}
	return http.StatusInternalServerError, errorResponse{Error: "Erro interno. Tente novamente."}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := statusOf(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, code, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", service.ErrValidation, err)
	}
	return nil
}

// uuidParam reads a path id. Malformed ids cannot name a row, so they are reported as not found.
func uuidParam(ps httprouter.Params, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ps.ByName(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", service.ErrNotFound, name)
	}
	return id, nil
}

func optionalUUID(raw, name string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: invalid id", service.ErrValidation, name)
	}
	return &id, nil
}
