package main

import (
	"net/http"
	"strconv"
)

// DevHelperGetToken sends a valid JWT token in dev mode
// /api/dev/token
func DevHelperGetToken(w http.ResponseWriter, req *http.Request) {

	viewID := req.URL.Query().Get("viewId")

	caps := JWTTokenCaps{
		Observe: true,
		Control: true,
		Layout:  true,
		MaxView: [2]float64{Floor.Width, Floor.Height},
		HTTP:    true,
	}

	tokenString, err := newJWTToken(viewID, caps)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	w.Header().Set("Content-type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(tokenString)))

	w.Write([]byte(tokenString))
	log.Debugf("New JWT development token (view: %s): %s", viewID, tokenString)
}
