package user

// Principal is the authenticated caller identity attached to a request.
type Principal struct {
	UserID      string
	DisplayName string
}

// Identity is the directory record resolved for denormalization into events
// and notification payloads.
type Identity struct {
	UserID      string
	DisplayName string
	DiscordID   string
}
