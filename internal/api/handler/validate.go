package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sandeepmv/vcflow/internal/api/response"
	"github.com/sandeepmv/vcflow/internal/parser"
)

// NewValidateFileHandler returns an http.HandlerFunc for POST
// /api/v1/validate-file. It parses the file and reports what would be
// extracted without creating a job or writing artifacts.
func NewValidateFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Filepath string `json:"filepath"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Filepath == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "filepath is required", nil)
			return
		}

		result, err := parser.ParseFile(req.Filepath)
		if err != nil {
			switch {
			case errors.Is(err, os.ErrNotExist):
				response.Error(w, http.StatusNotFound, "FILE_NOT_FOUND",
					"No file exists at the given path", nil)
			case errors.Is(err, parser.ErrUnsupportedFormat):
				response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT",
					"File extension is not supported", nil)
			default:
				response.JSON(w, validateResponse{
					Valid:  false,
					Format: fileFormat(req.Filepath),
					Error:  err.Error(),
				})
			}
			return
		}

		response.JSON(w, validateResponse{
			Valid:      true,
			Format:     fileFormat(req.Filepath),
			VMCount:    len(result.VMs),
			AlarmCount: len(result.Alarms),
		})
	}
}

type validateResponse struct {
	Valid      bool   `json:"valid"`
	Format     string `json:"format"`
	VMCount    int    `json:"vm_count"`
	AlarmCount int    `json:"alarm_count"`
	Error      string `json:"error,omitempty"`
}

func fileFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "unknown"
	}
}
