package main

import (
	"net/http"

	"torp/internal/websocket"
)

var wsHub = websocket.NewHub()

func handleWS(w http.ResponseWriter, r *http.Request) {
	websocket.Serve(wsHub, w, r)
}

// broadcast is the convenience helper used by handlers after writes.
func broadcast(resource, action string, id any) {
	wsHub.Notify(resource, action, id)
}
