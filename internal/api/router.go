package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the session and course operations onto HTTP routes. Any
// front end (desktop, web, CLI) is a thin adapter over these.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")

	r.HandleFunc("/courses", h.CreateCourse).Methods("POST")
	r.HandleFunc("/courses", h.ListCourses).Methods("GET")
	r.HandleFunc("/courses/{crn}/ledger", h.ExportLedger).Methods("GET")

	r.HandleFunc("/sessions", h.StartSession).Methods("POST")
	r.HandleFunc("/sessions/{id}", h.EndSession).Methods("DELETE")
	r.HandleFunc("/sessions/{id}/frames", h.SubmitFrame).Methods("POST")
	r.HandleFunc("/sessions/{id}/login", h.AttemptLogin).Methods("POST")
	r.HandleFunc("/sessions/{id}/logout", h.AttemptLogout).Methods("POST")
	r.HandleFunc("/sessions/{id}/reset", h.Reset).Methods("POST")
	r.HandleFunc("/sessions/{id}/identities", h.RegisterIdentity).Methods("POST")
	r.HandleFunc("/sessions/{id}/qr", h.RegisterQRToken).Methods("POST")
	r.HandleFunc("/sessions/{id}/qr/{email}", h.RetrieveQR).Methods("GET")

	return r
}
