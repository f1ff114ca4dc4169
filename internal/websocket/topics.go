package websocket

// Bus topics published by the transport layer.
const (
	// TopicGameAction carries validated player actions to the engine.
	TopicGameAction = "game.action"
	// TopicClientConnected announces a registered connection.
	TopicClientConnected = "ws.client.connected"
	// TopicClientDisconnected announces a transport-reported drop.
	TopicClientDisconnected = "ws.client.disconnected"
)
