package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/ghasnhhz/chat-app/internal/config"
	"github.com/ghasnhhz/chat-app/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomChannel 是实时层暴露给业务层的能力：查询在线人数、在房间删除时
// 强制关闭对应的广播通道。
type RoomChannel interface {
	Online(roomID uint) int
	CloseRoom(roomID uint)
}

// RoomService 封装房间创建、成员变更与删除的业务逻辑。
type RoomService struct {
	db      *gorm.DB
	cfg     config.Config
	channel RoomChannel
}

func NewRoomService(db *gorm.DB, cfg config.Config, channel RoomChannel) *RoomService {
	return &RoomService{db: db, cfg: cfg, channel: channel}
}

// RoomDTO 是对外输出的房间数据。
type RoomDTO struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	CreatorID   uint   `json:"creatorId"`
	InviteToken string `json:"inviteToken"`
	Online      int    `json:"online"`
}

// newInviteToken 生成 4 字节随机数的十六进制邀请 token（8 个字符）。
func newInviteToken() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create 创建房间并把创建者设为唯一初始成员。邀请 token 撞到唯一索引
// 时重新生成再试，其他错误直接上抛。
func (s *RoomService) Create(name string, creatorID uint) (*models.Room, string, error) {
	var room models.Room
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		var token string
		token, err = newInviteToken()
		if err != nil {
			return nil, "", err
		}
		room = models.Room{Name: name, CreatorID: creatorID, InviteToken: token}
		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&room).Error; err != nil {
				return err
			}
			return tx.Create(&models.RoomMember{RoomID: room.ID, UserID: creatorID}).Error
		})
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", err
		}
	}
	if err != nil {
		return nil, "", err
	}
	inviteLink := s.cfg.AppURL + "/join/" + room.InviteToken
	return &room, inviteLink, nil
}

// Member 房间成员的公开视图，邮箱等私密字段不对其他成员暴露。
type Member struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Age      int    `json:"age,omitempty"`
	Role     string `json:"role,omitempty"`
}

// RoomDetail 单个房间的完整视图，含成员列表。
type RoomDetail struct {
	Room    models.Room
	Members []Member
	Online  int
}

// Get 返回房间与成员信息。
func (s *RoomService) Get(roomID uint) (*RoomDetail, error) {
	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	var members []Member
	err := s.db.Model(&models.User{}).
		Select("users.id", "users.username", "users.age", "users.role").
		Joins("JOIN room_members ON room_members.user_id = users.id").
		Where("room_members.room_id = ?", roomID).
		Order("room_members.id asc").
		Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return &RoomDetail{Room: room, Members: members, Online: s.channel.Online(roomID)}, nil
}

// ListForUser 返回用户加入的全部房间，最新创建的在前。
func (s *RoomService) ListForUser(userID uint) ([]RoomDTO, error) {
	var rooms []models.Room
	err := s.db.
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.id desc").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	out := make([]RoomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomDTO{ID: r.ID, Name: r.Name, CreatorID: r.CreatorID, InviteToken: r.InviteToken, Online: s.channel.Online(r.ID)})
	}
	return out, nil
}

// Join 通过邀请 token 加入房间。重复加入是幂等操作：返回房间且成员集合不变。
func (s *RoomService) Join(inviteToken string, userID uint) (*models.Room, error) {
	var room models.Room
	if err := s.db.Where("invite_token = ?", inviteToken).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	member := models.RoomMember{RoomID: room.ID, UserID: userID}
	// 唯一索引加 DO NOTHING 兜底，并发重复加入也只会留下一行。
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// Leave 退出房间。用户本就不是成员时静默成功。
func (s *RoomService) Leave(roomID, userID uint) error {
	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	return s.db.Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&models.RoomMember{}).Error
}

// Delete 删除房间。仅创建者可删；房间、成员与消息在同一事务内移除，
// 提交后关闭实时通道，所有在线连接同时失去该房间。
func (s *RoomService) Delete(roomID, requesterID uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return err
		}
		if room.CreatorID != requesterID {
			return ErrNotRoomCreator
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&room).Error
	})
	if err != nil {
		return err
	}
	s.channel.CloseRoom(roomID)
	return nil
}

// IsMember 判断用户是否为房间成员。
func (s *RoomService) IsMember(roomID, userID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}
