package ws

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages review-feed subscriptions by course ID.
// The run goroutine owns the clients map.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
}

// message couples payload with course identifier.
type message struct {
	courseID string
	payload  []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	courseID string
	client   Subscriber
}

// NewHub creates an initialized Hub and starts its run loop. buffer
// sizes the broadcast channel so publishers are not blocked by slow
// subscriber writes; zero means unbuffered.
func NewHub(buffer int) *Hub {
	if buffer < 0 {
		buffer = 0
	}
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message, buffer),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.courseID]; !ok {
				h.clients[sub.courseID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.courseID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.courseID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.courseID)
				}
			}
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.courseID]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.courseID)
				}
			}
		}
	}
}

// Register adds a client to a course stream.
func (h *Hub) Register(courseID string, client Subscriber) {
	h.register <- subscription{courseID: courseID, client: client}
}

// Unregister removes a client.
func (h *Hub) Unregister(courseID string, client Subscriber) {
	h.unreg <- subscription{courseID: courseID, client: client}
}

// Broadcast sends payload to all course clients.
func (h *Hub) Broadcast(courseID string, payload []byte) {
	h.broadcast <- message{courseID: courseID, payload: payload}
}
