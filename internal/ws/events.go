package ws

import "encoding/json"

// 事件协议：双向都是 {"event": ..., "data": ...} 信封，
// 每种事件对应一个固定 schema，非法载荷在进入业务逻辑前即被拒绝。
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"

	EventReceiveMessage = "receive_message"
	EventMessageError   = "message_error"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinRoomPayload struct {
	RoomID uint `json:"roomId"`
}

type leaveRoomPayload struct {
	RoomID uint `json:"roomId"`
}

type sendMessagePayload struct {
	RoomID uint   `json:"roomId"`
	Text   string `json:"text"`
}

type errorPayload struct {
	Error string `json:"error"`
}

type presencePayload struct {
	RoomID   uint   `json:"roomId"`
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	Online   int    `json:"online"`
}

// encodeEvent 序列化一个服务端事件。载荷均为本包可控结构，
// 序列化失败视为编程错误。
func encodeEvent(event string, data interface{}) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	b, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil
	}
	return b
}

func errorEvent(msg string) []byte {
	return encodeEvent(EventMessageError, errorPayload{Error: msg})
}

func presenceEvent(event string, roomID uint, c *Client, online int) []byte {
	return encodeEvent(event, presencePayload{RoomID: roomID, UserID: c.userID, Username: c.username, Online: online})
}
