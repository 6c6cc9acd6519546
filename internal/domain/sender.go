package domain

type SenderKind string

const (
	SenderKindUser   SenderKind = "user"
	SenderKindSystem SenderKind = "system"
)

// Sender tags who originated a room update, so clients can tell a user
// action from an ambient server correction without a magic user id.
type Sender struct {
	Kind        SenderKind
	UserId      string
	DisplayName string
}

func SystemSender() Sender {
	return Sender{Kind: SenderKindSystem}
}

func UserSender(userId, displayName string) Sender {
	return Sender{
		Kind:        SenderKindUser,
		UserId:      userId,
		DisplayName: displayName,
	}
}
