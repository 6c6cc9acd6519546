package session

import "errors"

var ErrNotFound = errors.New("not found")

// ConnectSession is a pre-validated admission triple waiting for its
// websocket connection. It expires if unused.
type ConnectSession struct {
	RoomId      string `redis:"room_id"`
	UserId      string `redis:"user_id"`
	Nickname    string `redis:"nickname"`
	InviteToken string `redis:"invite_token"`
}

type SetConnectSessionParams struct {
	SessionId   string
	RoomId      string
	UserId      string
	Nickname    string
	InviteToken string
}
