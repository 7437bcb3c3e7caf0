package snapshot

// worldKey stores the JSON encoded Document.
func worldKey(namespace string) string {
	return namespace + ":world"
}

// tickKey stores the world tick the snapshot was taken at.
func tickKey(namespace string) string {
	return namespace + ":tick"
}
