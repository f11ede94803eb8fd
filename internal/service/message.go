package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ghasnhhz/chat-app/internal/models"

	"gorm.io/gorm"
)

// MaxMessageLen 单条消息的最大长度（按字符计）。
const MaxMessageLen = 1000

// MessageService 封装消息追加与历史查询的业务逻辑。
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// Author 消息作者的精简视图。
type Author struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// MessageDTO 是对外输出的消息数据，REST 历史查询与实时广播共用。
type MessageDTO struct {
	ID        uint      `json:"id"`
	RoomID    uint      `json:"roomId"`
	Text      string    `json:"text"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Append 持久化一条消息。此调用返回成功即认为消息已发送；
// 房间内的全序就是这里的持久化顺序。
func (s *MessageService) Append(roomID, userID uint, content string) (*MessageDTO, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxMessageLen {
		return nil, ErrContentTooLong
	}
	var user models.User
	if err := s.db.Select("id", "username").First(&user, userID).Error; err != nil {
		return nil, err
	}
	msg := models.Message{RoomID: roomID, UserID: userID, Content: content}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &MessageDTO{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Text:      msg.Content,
		Author:    Author{ID: user.ID, Username: user.Username},
		CreatedAt: msg.CreatedAt,
	}, nil
}

// History 查询房间历史消息，按持久化顺序升序返回，可用 beforeID 向前翻页。
func (s *MessageService) History(roomID uint, limit int, beforeID uint) ([]MessageDTO, error) {
	if limit <= 0 {
		limit = 50
	} else if limit > 200 {
		limit = 200
	}

	q := s.db.Where("room_id = ?", roomID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []models.Message
	if err := q.Order("id desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}

	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	authors, err := s.resolveAuthors(msgs)
	if err != nil {
		return nil, err
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{
			ID:        m.ID,
			RoomID:    m.RoomID,
			Text:      m.Content,
			Author:    authors[m.UserID],
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

// resolveAuthors 批量获取消息涉及的作者信息。
func (s *MessageService) resolveAuthors(msgs []models.Message) (map[uint]Author, error) {
	seen := make(map[uint]struct{}, len(msgs))
	userIDs := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		userIDs = append(userIDs, m.UserID)
	}

	authors := make(map[uint]Author, len(userIDs))
	if len(userIDs) > 0 {
		var users []models.User
		if err := s.db.Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			authors[u.ID] = Author{ID: u.ID, Username: u.Username}
		}
	}
	// 作者已被删除的消息仍要带上 id，便于前端区分。
	for _, m := range msgs {
		if _, ok := authors[m.UserID]; !ok {
			authors[m.UserID] = Author{ID: m.UserID}
		}
	}
	return authors, nil
}
