package web

// Event is the first byte of a message sent by a client.
type Event = uint8

const (
	_ Event = iota
	// Upload carries a file: its name, a zero byte, then its contents.
	Upload
	// Refresh reports a display refresh of the client.
	Refresh
	// Reload selects a recently uploaded image again by its
	// checksum, 8 bytes little endian.
	Reload
	// Select reports a selection without a file.
	Select
	KeepAlive = 254
	Closing   = 255
)

// Type is the first byte of a message sent by the hub.
type Type = uint8

const (
	// ViewUpdate carries the JSON encoded view.
	ViewUpdate Type = iota
	// ClientInfo carries the id assigned to the receiving client.
	ClientInfo
	// ServerInfo carries the id and average latency in milliseconds
	// (uint16, little endian) of every connected client.
	ServerInfo
	// CacheSync carries the JSON encoded list of cached images.
	CacheSync
	// ClientError carries the error of the last request as text.
	ClientError
	ClientClosing
)
