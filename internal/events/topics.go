package events

// Topic constants for domain events emitted by the platform.
const (
	TopicRoomCreated      = "room.created"
	TopicRoomMemberJoined = "room.member_joined"
	TopicRoomLocked       = "room.locked"
	TopicClaimUpdated     = "claim.updated"
	TopicClaimDeleted     = "claim.deleted"
	TopicReceiptUpdated   = "receipt.updated"
	TopicReceiptExtracted = "receipt.extracted"
)

// DefaultTopics returns the canonical list of topics rooms can emit.
func DefaultTopics() []string {
	return []string{
		TopicRoomCreated,
		TopicRoomMemberJoined,
		TopicRoomLocked,
		TopicClaimUpdated,
		TopicClaimDeleted,
		TopicReceiptUpdated,
		TopicReceiptExtracted,
	}
}
