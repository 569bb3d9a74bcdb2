package handlers

import (
	"net/http"
	"strconv"

	"media-preparser/internal/preparser"

	"github.com/gorilla/mux"
)

// ListRequests reports how many requests are outstanding.
func (h *Handlers) ListRequests(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatusCode(w, http.StatusOK, map[string]int{"pending": h.svc.Pending()})
}

// CancelAllRequests interrupts every outstanding request.
func (h *Handlers) CancelAllRequests(w http.ResponseWriter, _ *http.Request) {
	n := h.svc.Cancel(preparser.InvalidID)
	writeJSONStatusCode(w, http.StatusOK, map[string]int{"cancelled": n})
}

// CancelRequest interrupts the request named by {id}.
func (h *Handlers) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || preparser.RequestID(id) == preparser.InvalidID {
		writeJSONError(w, "Invalid request id", http.StatusBadRequest)
		return
	}
	if h.svc.Cancel(preparser.RequestID(id)) == 0 {
		writeJSONError(w, "Request not found or already finished", http.StatusNotFound)
		return
	}
	writeJSONStatusCode(w, http.StatusOK, map[string]int{"cancelled": 1})
}
