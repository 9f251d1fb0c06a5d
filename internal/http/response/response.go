package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stagium/backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

type ErrorEnvelope struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

type OKEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// exposeDetail is cleared in production so technical detail never leaks to
// clients; set from app bootstrap.
var exposeDetail = true

func SetExposeDetail(v bool) { exposeDetail = v }

func RespondError(c *gin.Context, status int, code string, msg string, err error) {
	out := ErrorEnvelope{Error: APIError{Message: msg, Code: code}}
	if exposeDetail && err != nil && err.Error() != msg {
		out.Error.Detail = err.Error()
	}
	c.JSON(status, out)
}

// messages is the client-facing text per error code. The underlying error
// never becomes the message: it rides in Detail, and only outside production.
var messages = map[string]string{
	apierr.CodeInvalidPayload:      "invalid request payload",
	apierr.CodeInvalidDateRange:    "invalid date range",
	apierr.CodeTypeRule:            "stage type rules violated",
	apierr.CodeDuplicateMembership: "a stagiaire appears in more than one groupe",
	apierr.CodeConflictStagiaire:   "overlapping assignments for the same stagiaire",
	apierr.CodeConflictGroupe:      "overlapping assignments for the same groupe",
	apierr.CodeUnknownGroupeNumero: "unknown groupe numero",
	apierr.CodeNotFound:            "resource not found",
	apierr.CodeMissingFile:         "a supporting document is required",
	apierr.CodeBadFile:             "unsupported or unreadable document",
	apierr.CodeMissingReference:    "no expected reference recorded for this stage",
	apierr.CodeReferenceMismatch:   "document reference does not match the expected one",
	apierr.CodeStorageError:        "document storage failed",
	apierr.CodeInternal:            "internal error",
}

func messageFor(code string) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[apierr.CodeInternal]
}

// RespondAPIError maps an apierr (or any error, defaulting to 500) onto the
// envelope.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.From(err)
	RespondError(c, ae.Status, ae.Code, messageFor(ae.Code), ae.Err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, OKEnvelope{Success: true, Data: payload})
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, OKEnvelope{Success: true, Data: payload})
}
