package realtime

// Channel kinds for the topics the app subscribes. Names are deterministic
// strings derived from the subscribing entity, e.g. "messages:<userID>".
const (
	KindMessages      = "messages"
	KindNotifications = "notifications"
	KindPosts         = "posts"
	KindUserSettings  = "user-settings"
)

// Name builds the logical channel name for a kind and owner id.
func Name(kind, ownerID string) string {
	return kind + ":" + ownerID
}
