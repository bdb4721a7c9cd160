package v1

import (
	"encoding/json"
	"net/http"

	"gopkg.in/guregu/null.v3"

	"github.com/sift-lang/sift/lib/epoch"
)

// Error is the JSON body every non-2xx response carries.
type Error struct {
	Error string `json:"error"`
}

func apiError(rw http.ResponseWriter, msg string, status int) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(Error{Error: msg})
}

func intFrom(e epoch.Epoch) null.Int {
	return null.IntFrom(int64(e))
}
