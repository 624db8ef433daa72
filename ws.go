/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/globetrotter/rooms"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS upgrades the request and hands the connection to the manager.
// Which room it belongs to is decided by the join_room messages it sends.
func serveWS(cfg *Config, manager *rooms.Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: Upgrade for %s failed: %v", realIP(r), err)

			return
		}

		manager.Serve(ws, realIP(r))
	}
}

func registerRooms(cfg *Config, mux *httprouter.Router, manager *rooms.Manager) {
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, manager))
}
