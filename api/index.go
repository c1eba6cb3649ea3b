package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"snw-store/internal/app"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
)

func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		apiRuntime, initErr = app.Build(app.Options{LoadDotEnv: false, StartSweepers: false})
	})

	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Erro interno do servidor"})
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}
