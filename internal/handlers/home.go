package handlers

import (
	"net/http"

	"chat-relay/pkg/logging"
)

// HomeBody is the liveness text served on "/". Existing clients probe for it
// verbatim.
const HomeBody = "Flask server is running"

// Home handles GET and OPTIONS on "/".
func Home(w http.ResponseWriter, r *http.Request) {
	logging.L(r.Context()).Info("home endpoint accessed")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(HomeBody))
}
