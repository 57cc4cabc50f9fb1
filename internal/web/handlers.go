package web

import (
	"net/http"

	"github.com/JonMunkholm/kwimport/internal/core"
)

type healthResponse struct {
	Status        string `json:"status"`
	ActiveImports int    `json:"activeImports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		ActiveImports: s.service.ActiveImports(),
	})
}

// toolResponse is the public view of a tool schema.
type toolResponse struct {
	Tool            core.ToolSource `json:"tool"`
	DisplayName     string          `json:"displayName"`
	RequiredColumns []string        `json:"requiredColumns"`
	OptionalColumns []string        `json:"optionalColumns"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	schemas := s.service.Tools()
	out := make([]toolResponse, 0, len(schemas))
	for _, ts := range schemas {
		out = append(out, toolResponse{
			Tool:            ts.Tool,
			DisplayName:     ts.DisplayName,
			RequiredColumns: ts.RequiredColumns,
			OptionalColumns: ts.OptionalColumns,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleImportStatus reports limiter occupancy so clients can back off
// before uploading.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Limiter().Status())
}
