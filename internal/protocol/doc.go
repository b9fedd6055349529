// Package protocol owns the message envelope and its encrypted packet form.
//
// Ownership boundary:
// - Message, Type and Error, and their JSON form
// - Encrypt/Decrypt over frame and seal
// - host message conversion (FromHost/ToHost)
// - error classification for transports
package protocol
