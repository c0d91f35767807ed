package handlers

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust CORS as needed, e.g., check r.Header.Get("Origin")
	},
}

// Store connected members (memberId -> *websocket.Conn)
type NotificationHub struct {
	clients map[string]*websocket.Conn
	mutex   sync.Mutex
}

var hub = &NotificationHub{
	clients: make(map[string]*websocket.Conn),
	mutex:   sync.Mutex{},
}

// HandleCasesWebSocket keeps a live feed of case updates open per member
func HandleCasesWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	memberID := r.URL.Query().Get("memberId")
	if memberID == "" {
		conn.Close()
		return
	}

	// Register client
	hub.mutex.Lock()
	hub.clients[memberID] = conn
	hub.mutex.Unlock()
	log.Printf("Member %s connected to /ws/cases", memberID)

	// Handle disconnect
	conn.SetCloseHandler(func(code int, text string) error {
		hub.mutex.Lock()
		delete(hub.clients, memberID)
		hub.mutex.Unlock()
		log.Printf("Member %s disconnected from /ws/cases", memberID)
		return nil
	})

	// Keep connection alive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			conn.Close()
			break
		}
	}
}

// BroadcastCaseUpdate pushes a status change to the assignee's live feed and
// to every connected admin listener.
func BroadcastCaseUpdate(caseID, status, assignedTo string) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	payload := map[string]interface{}{
		"event": "case_update",
		"data": map[string]string{
			"caseId":     caseID,
			"status":     status,
			"assignedTo": assignedTo,
		},
	}
	for memberID, conn := range hub.clients {
		if err := conn.WriteJSON(payload); err != nil {
			log.Printf("Error sending case update to member %s: %v", memberID, err)
			delete(hub.clients, memberID)
			conn.Close()
		}
	}
}
